package payments

import "context"

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusPending   = "pending"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
)

// Metadata keys used for the application-checked binding between a payment
// and the business entity it was created for.
const (
	MetadataKeyKind       = "kind"
	MetadataKeyTransferID = "transfer_id"
	MetadataKeyProjectID  = "project_id"
	MetadataKindTransfer  = "domain_transfer"
)

// Payment is the processor's view of a charge intent.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
	ClientSecret string            `json:"client_secret,omitempty"`
}

// CreateIntentInput creates a charge intent carrying the metadata binding.
type CreateIntentInput struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"-"`
}

// Client is the outbound payment processor surface used by the core.
type Client interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Payment, error)
	GetPayment(ctx context.Context, paymentRef string) (*Payment, error)
}
