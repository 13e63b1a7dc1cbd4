package transfers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/payments"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
)

var (
	// ErrNotEligible is returned when the registrar reports the domain as
	// not transferable. No state is created.
	ErrNotEligible = errors.New("domain is not eligible for transfer")
	// ErrPaymentNotVerified rejects confirm-with-auth-code before the
	// authorization code is ever accepted or stored.
	ErrPaymentNotVerified = errors.New("payment not confirmed")
	// ErrNotCancellable is returned when cancellation is requested outside
	// pending_payment/pending; an in-flight registry transfer cannot be
	// unilaterally aborted.
	ErrNotCancellable = errors.New("transfer can no longer be cancelled")
	// ErrInvalidState is returned when an operation does not apply to the
	// transfer's current status.
	ErrInvalidState = errors.New("transfer is not in a valid state for this operation")
)

// PriceSource yields per-TLD pricing; implemented by the pricing cache.
type PriceSource interface {
	GetPricing(ctx context.Context, tld string) (*registrar.Pricing, error)
}

// DNSConfigurer is the downstream collaborator that auto-configures DNS for
// a freshly transferred domain. Failures are logged, never propagated.
type DNSConfigurer interface {
	Configure(ctx context.Context, domain *models.Domain) error
}

// Service orchestrates domain transfer-in: eligibility, payment-gated
// authorization code acceptance, registrar order submission, and polling.
type Service struct {
	repo      Repository
	registrar registrar.Client
	payments  payments.Client
	prices    PriceSource
	dns       DNSConfigurer
	validate  *validator.Validate
}

// NewService creates a transfer service. dns may be nil.
func NewService(repo Repository, reg registrar.Client, pay payments.Client, prices PriceSource, dns DNSConfigurer) *Service {
	return &Service{
		repo:      repo,
		registrar: reg,
		payments:  pay,
		prices:    prices,
		dns:       dns,
		validate:  validator.New(),
	}
}

// CheckEligibility queries the registrar for transferability. It is
// read-only and creates no state. Only the Transferable flag is reliable;
// the remaining fields are display hints.
func (s *Service) CheckEligibility(ctx context.Context, domainName string) (*registrar.Transferability, error) {
	name, _, err := splitDomain(domainName)
	if err != nil {
		return nil, err
	}
	return s.registrar.CheckTransferable(ctx, name)
}

// CreateIntentInput starts a transfer. No authorization code is requested
// or stored at this stage.
type CreateIntentInput struct {
	ProjectID  uint
	DomainName string
	Contact    registrar.Contact
}

// CreateIntentResult carries the transfer row plus the payment client secret
// the front door hands to its payment widget.
type CreateIntentResult struct {
	Transfer            *models.DomainTransfer
	PaymentClientSecret string
	Resumed             bool
}

// CreateIntent checks eligibility, prices the transfer, creates the payment
// intent and persists a pending_payment transfer row. Re-invoking it for a
// domain with a non-terminal transfer returns the existing row instead of
// creating a duplicate.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	name, tld, err := splitDomain(in.DomainName)
	if err != nil {
		return nil, err
	}
	if in.ProjectID == 0 {
		return nil, errors.New("project id is required")
	}
	if err := s.validate.Struct(in.Contact); err != nil {
		return nil, fmt.Errorf("invalid contact details: %w", err)
	}

	// Resumable: an existing active transfer wins over creating a new one.
	if existing, err := s.repo.FindActiveByProjectAndDomain(in.ProjectID, name); err == nil {
		payment, perr := s.CreateOrReusePayment(ctx, existing)
		if perr != nil {
			return nil, perr
		}
		return &CreateIntentResult{Transfer: existing, PaymentClientSecret: payment.ClientSecret, Resumed: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	eligibility, err := s.registrar.CheckTransferable(ctx, name)
	if err != nil {
		return nil, err
	}
	if !eligibility.Transferable {
		return nil, ErrNotEligible
	}

	price, err := s.prices.GetPricing(ctx, tld)
	if err != nil {
		return nil, fmt.Errorf("pricing lookup for .%s failed: %w", tld, err)
	}

	contactJSON, err := json.Marshal(in.Contact)
	if err != nil {
		return nil, err
	}

	transfer := &models.DomainTransfer{
		PublicID:        uuid.New().String(),
		ProjectID:       in.ProjectID,
		DomainName:      name,
		TLD:             tld,
		Status:          models.TransferStatusPendingPayment,
		StatusMessage:   "Waiting for payment",
		SourceRegistrar: eligibility.CurrentRegistrar,
		ContactJSON:     string(contactJSON),
		PriceAmount:     price.TransferPrice,
		PriceCurrency:   price.Currency,
	}
	if err := s.repo.Create(transfer); err != nil {
		return nil, err
	}

	payment, err := s.CreateOrReusePayment(ctx, transfer)
	if err != nil {
		return nil, err
	}
	return &CreateIntentResult{Transfer: transfer, PaymentClientSecret: payment.ClientSecret}, nil
}

// CreateOrReusePayment returns the transfer's charge intent, creating one
// only if none exists or the previous one is terminally dead. The metadata
// binding (kind + transfer id + project id) is attached at creation and
// verified again at confirmation.
func (s *Service) CreateOrReusePayment(ctx context.Context, transfer *models.DomainTransfer) (*payments.Payment, error) {
	if transfer.PaymentRef != "" {
		payment, err := s.payments.GetPayment(ctx, transfer.PaymentRef)
		if err != nil {
			return nil, err
		}
		if payment.Status != payments.PaymentStatusFailed && payment.Status != payments.PaymentStatusCanceled {
			return payment, nil
		}
	}

	payment, err := s.payments.CreateIntent(ctx, payments.CreateIntentInput{
		Amount:      transfer.PriceAmount,
		Currency:    transfer.PriceCurrency,
		Description: fmt.Sprintf("Domain transfer: %s", transfer.DomainName),
		Metadata: map[string]string{
			payments.MetadataKeyKind:       payments.MetadataKindTransfer,
			payments.MetadataKeyTransferID: transfer.PublicID,
			payments.MetadataKeyProjectID:  strconv.FormatUint(uint64(transfer.ProjectID), 10),
		},
		IdempotencyKey: "transfer:" + transfer.PublicID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPaymentRef(transfer.ID, payment.ID); err != nil {
		return nil, err
	}
	transfer.PaymentRef = payment.ID
	return payment, nil
}

// VerifyPaymentForTransfer enforces the four-check payment gate: succeeded
// status, matching amount, matching currency, and the metadata binding to
// this exact transfer. It fails closed on any mismatch.
func VerifyPaymentForTransfer(payment *payments.Payment, transfer *models.DomainTransfer) error {
	if payment == nil {
		return fmt.Errorf("%w: no payment found", ErrPaymentNotVerified)
	}
	if payment.Status != payments.PaymentStatusSucceeded {
		return fmt.Errorf("%w: payment status is %q", ErrPaymentNotVerified, payment.Status)
	}
	if payment.Amount != transfer.PriceAmount {
		return fmt.Errorf("%w: amount mismatch", ErrPaymentNotVerified)
	}
	if !strings.EqualFold(payment.Currency, transfer.PriceCurrency) {
		return fmt.Errorf("%w: currency mismatch", ErrPaymentNotVerified)
	}
	if payment.Metadata[payments.MetadataKeyKind] != payments.MetadataKindTransfer {
		return fmt.Errorf("%w: payment is not bound to a domain transfer", ErrPaymentNotVerified)
	}
	if payment.Metadata[payments.MetadataKeyTransferID] != transfer.PublicID {
		return fmt.Errorf("%w: payment is bound to a different transfer", ErrPaymentNotVerified)
	}
	if pid, ok := payment.Metadata[payments.MetadataKeyProjectID]; ok {
		if pid != strconv.FormatUint(uint64(transfer.ProjectID), 10) {
			return fmt.Errorf("%w: payment is bound to a different project", ErrPaymentNotVerified)
		}
	}
	return nil
}

// ConfirmWithAuthCode verifies the payment gate, then and only then accepts
// the authorization code: it is bcrypt-hashed for storage and submitted to
// the registrar as a transfer order. Acceptance moves pending_payment ->
// pending; a registrar rejection moves it to failed.
func (s *Service) ConfirmWithAuthCode(ctx context.Context, publicID, authCode string) (*models.DomainTransfer, error) {
	transfer, err := s.repo.GetByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferStatusPendingPayment {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, transfer.Status)
	}
	if strings.TrimSpace(authCode) == "" {
		return nil, errors.New("authorization code is required")
	}
	if transfer.PaymentRef == "" {
		return nil, fmt.Errorf("%w: no payment reference", ErrPaymentNotVerified)
	}

	payment, err := s.payments.GetPayment(ctx, transfer.PaymentRef)
	if err != nil {
		// The gate never degrades: an unreachable processor is a refusal,
		// not a pass.
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
	}
	if err := VerifyPaymentForTransfer(payment, transfer); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(authCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var contact registrar.Contact
	if err := json.Unmarshal([]byte(transfer.ContactJSON), &contact); err != nil {
		return nil, fmt.Errorf("stored contact details are unreadable: %w", err)
	}

	order, err := s.registrar.SubmitTransfer(ctx, registrar.SubmitTransferInput{
		Domain:   transfer.DomainName,
		AuthCode: authCode,
		Contact:  contact,
	})
	if err != nil {
		if errors.Is(err, registrar.ErrRejected) {
			if _, terr := s.repo.TransitionStatus(transfer.ID,
				models.TransferStatusPendingPayment, models.TransferStatusFailed,
				map[string]interface{}{"status_message": "Registrar rejected the transfer order"},
			); terr != nil {
				return nil, terr
			}
			transfer.Status = models.TransferStatusFailed
			return transfer, err
		}
		return nil, err
	}

	ok, err := s.repo.TransitionStatus(transfer.ID,
		models.TransferStatusPendingPayment, models.TransferStatusPending,
		map[string]interface{}{
			"auth_code_hash":      string(hash),
			"registrar_order_id":  order.OrderID,
			"raw_provider_status": order.Status,
			"status_message":      "Transfer order submitted",
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: transfer changed state concurrently", ErrInvalidState)
	}
	return s.repo.GetByPublicID(publicID)
}

// PollStatus fetches the registrar order status and advances the transfer.
// The raw provider status is recorded on every poll; unknown normalized
// statuses leave the state machine untouched.
func (s *Service) PollStatus(ctx context.Context, publicID string) (*models.DomainTransfer, error) {
	transfer, err := s.repo.GetByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferStatusPending && transfer.Status != models.TransferStatusProcessing {
		return transfer, nil
	}

	order, err := s.registrar.GetTransferOrder(ctx, transfer.RegistrarOrderID)
	if err != nil {
		return nil, err
	}
	return s.applyOrderStatus(ctx, transfer, order)
}

// ApplyOrderUpdate applies a registrar-pushed order status change (delivered
// through the webhook ledger) to the transfer owning the order.
func (s *Service) ApplyOrderUpdate(ctx context.Context, order *registrar.TransferOrder) (*models.DomainTransfer, error) {
	transfer, err := s.repo.GetByRegistrarOrderID(order.OrderID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferStatusPending && transfer.Status != models.TransferStatusProcessing {
		return transfer, nil
	}
	return s.applyOrderStatus(ctx, transfer, order)
}

func (s *Service) applyOrderStatus(ctx context.Context, transfer *models.DomainTransfer, order *registrar.TransferOrder) (*models.DomainTransfer, error) {
	rawUpdates := map[string]interface{}{
		"raw_provider_status": order.Status,
	}
	if order.StatusMessage != "" {
		rawUpdates["status_message"] = order.StatusMessage
	}

	normalized, known := NormalizeOrderStatus(order.Status)
	if !known {
		log.Warnf("[Transfers] Unknown provider status %q for transfer %s, keeping %s",
			order.Status, transfer.PublicID, transfer.Status)
		if _, err := s.repo.TransitionStatus(transfer.ID, transfer.Status, transfer.Status, rawUpdates); err != nil {
			return nil, err
		}
		return s.repo.GetByPublicID(transfer.PublicID)
	}

	switch normalized {
	case models.TransferStatusProcessing:
		if transfer.Status == models.TransferStatusPending {
			if _, err := s.repo.TransitionStatus(transfer.ID,
				models.TransferStatusPending, models.TransferStatusProcessing, rawUpdates); err != nil {
				return nil, err
			}
		} else {
			if _, err := s.repo.TransitionStatus(transfer.ID, transfer.Status, transfer.Status, rawUpdates); err != nil {
				return nil, err
			}
		}

	case models.TransferStatusCompleted:
		transfer.RawProviderStatus = order.Status
		domain, err := s.repo.CompleteWithDomain(transfer, time.Now())
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.TransitionStatus(transfer.ID,
			models.TransferStatusCompleted, models.TransferStatusCompleted, rawUpdates); err != nil {
			return nil, err
		}
		// DNS auto-configuration is a downstream collaborator; its failure
		// never unwinds the completed transfer.
		if s.dns != nil {
			if derr := s.dns.Configure(ctx, domain); derr != nil {
				log.Errorf("[Transfers] DNS configuration for %s failed: %v", domain.Name, derr)
			}
		}

	case models.TransferStatusFailed:
		rawUpdates["status_message"] = failureMessage(order)
		if _, err := s.repo.TransitionStatus(transfer.ID, transfer.Status, models.TransferStatusFailed, rawUpdates); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByPublicID(transfer.PublicID)
}

// Cancel aborts a transfer that has not reached the registry yet.
func (s *Service) Cancel(ctx context.Context, publicID string) (*models.DomainTransfer, error) {
	_ = ctx
	transfer, err := s.repo.GetByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if !transfer.Status.IsCancellable() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, transfer.Status)
	}
	ok, err := s.repo.TransitionStatus(transfer.ID, transfer.Status, models.TransferStatusCancelled,
		map[string]interface{}{"status_message": "Cancelled by user"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: transfer changed state concurrently", ErrNotCancellable)
	}
	return s.repo.GetByPublicID(publicID)
}

// Get returns a transfer by its public id.
func (s *Service) Get(ctx context.Context, publicID string) (*models.DomainTransfer, error) {
	_ = ctx
	return s.repo.GetByPublicID(publicID)
}

// List returns a project's transfers, newest first.
func (s *Service) List(ctx context.Context, projectID uint, limit, offset int) ([]models.DomainTransfer, error) {
	_ = ctx
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByProject(projectID, limit, offset)
}

// HealthReport summarizes transfers that have been in flight suspiciously
// long; consumed by the admin surface.
type HealthReport struct {
	StaleCount  int                     `json:"stale_count"`
	OldestAge   string                  `json:"oldest_age,omitempty"`
	StaleSample []models.DomainTransfer `json:"stale_sample,omitempty"`
}

// Health reports transfers stuck in a non-terminal state for longer than
// the given age.
func (s *Service) Health(ctx context.Context, staleAfter time.Duration) (*HealthReport, error) {
	_ = ctx
	stale, err := s.repo.ListStale(time.Now().Add(-staleAfter))
	if err != nil {
		return nil, err
	}
	report := &HealthReport{StaleCount: len(stale)}
	if len(stale) > 0 {
		report.OldestAge = time.Since(stale[0].InitiatedAt).Round(time.Minute).String()
		if len(stale) > 10 {
			stale = stale[:10]
		}
		report.StaleSample = stale
	}
	return report, nil
}

// splitDomain validates a fully qualified domain name and returns the
// normalized name plus its TLD.
func splitDomain(domainName string) (string, string, error) {
	name := strings.ToLower(strings.TrimSpace(domainName))
	if name == "" {
		return "", "", errors.New("domain name is required")
	}
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return "", "", fmt.Errorf("invalid domain name %q", domainName)
	}
	return name, name[idx+1:], nil
}

func failureMessage(order *registrar.TransferOrder) string {
	if order.StatusMessage != "" {
		return order.StatusMessage
	}
	return "Transfer failed at the registrar"
}
