package registrar

import (
	"context"
	"errors"
	"time"
)

// ErrRejected marks a definitive registrar refusal (bad authorization code,
// ineligible domain). Callers treat it as terminal rather than transient.
var ErrRejected = errors.New("registrar rejected the request")

// Availability is the result of a domain availability lookup.
type Availability struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Premium   bool   `json:"premium"`
}

// Transferability is the result of a transfer eligibility lookup. Only
// Transferable is reliable; CurrentRegistrar and ExpiresAt are best-effort
// display hints that vary by registry/TLD and must never drive control flow.
type Transferability struct {
	Domain           string     `json:"domain"`
	Transferable     bool       `json:"transferable"`
	CurrentRegistrar string     `json:"current_registrar,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// Contact is the registrant contact set submitted with a transfer order.
type Contact struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Organization string `json:"organization,omitempty"`
	Address1     string `json:"address1" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Country      string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// SubmitTransferInput carries a transfer order submission. The authorization
// code is sent to the registrar and never logged.
type SubmitTransferInput struct {
	Domain   string  `json:"domain"`
	AuthCode string  `json:"auth_code"`
	Contact  Contact `json:"contact"`
}

// TransferOrder is the registrar's view of a submitted transfer. Status is
// the raw provider string; normalization happens in the transfers package.
type TransferOrder struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
}

// Pricing is per-TLD registrar pricing in minor currency units.
type Pricing struct {
	TLD           string `json:"tld"`
	RegisterPrice int64  `json:"register_price"`
	TransferPrice int64  `json:"transfer_price"`
	RenewPrice    int64  `json:"renew_price"`
	Currency      string `json:"currency"`
}

// Client is the outbound registrar API surface used by the core.
type Client interface {
	CheckAvailability(ctx context.Context, domain string) (*Availability, error)
	CheckTransferable(ctx context.Context, domain string) (*Transferability, error)
	SubmitTransfer(ctx context.Context, in SubmitTransferInput) (*TransferOrder, error)
	GetTransferOrder(ctx context.Context, orderID string) (*TransferOrder, error)
	GetPricing(ctx context.Context, tld string) (*Pricing, error)
	ListPricing(ctx context.Context) ([]Pricing, error)
}
