package disputes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

// Event kinds derived from the payment processor's dispute event types.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindClosed  = "closed"
)

// errAlreadyProcessed aborts the transaction when another handler won the
// ProcessedEvent insert race. It is success from the sender's point of view.
var errAlreadyProcessed = errors.New("dispute event already processed")

// DisputeEvent is a parsed payment-processor dispute notification.
type DisputeEvent struct {
	EventID   string `json:"id"`
	EventType string `json:"type"`
	Data      struct {
		DisputeID string `json:"dispute_id"`
		ChargeRef string `json:"charge"`
		Status    string `json:"status"`
		Reason    string `json:"reason,omitempty"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// Kind maps the provider event type onto the three kinds the state machine
// consumes. Unknown types return an empty kind and are ignored upstream.
func (e *DisputeEvent) Kind() string {
	switch {
	case strings.HasSuffix(e.EventType, ".created"):
		return KindCreated
	case strings.HasSuffix(e.EventType, ".updated"):
		return KindUpdated
	case strings.HasSuffix(e.EventType, ".closed"):
		return KindClosed
	default:
		return ""
	}
}

// ParseEvent decodes a raw dispute webhook body.
func ParseEvent(body []byte) (*DisputeEvent, error) {
	var ev DisputeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse dispute event: %w", err)
	}
	if strings.TrimSpace(ev.EventID) == "" {
		return nil, errors.New("dispute event is missing an id")
	}
	// Non-dispute payment events pass through without a charge; the
	// dispatcher drops them by kind.
	if ev.Kind() != "" && strings.TrimSpace(ev.Data.ChargeRef) == "" {
		return nil, errors.New("dispute event is missing a charge reference")
	}
	return &ev, nil
}

// Service drives domains through the dispute escalation lattice
// (active -> at_risk -> suspended) with transactionally idempotent
// application: the ProcessedEvent insert and every entity mutation commit
// or roll back together.
type Service struct {
	db       *gorm.DB
	notifier Notifier
}

// NewService creates a dispute service. The notifier may be nil.
func NewService(db *gorm.DB, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// HandleEvent applies one dispute event. Replays and concurrent duplicates
// return nil without side effects.
func (s *Service) HandleEvent(ctx context.Context, ev *DisputeEvent) error {
	kind := ev.Kind()
	if kind == "" {
		log.Infof("[Disputes] Ignoring unhandled event type %s", ev.EventType)
		return nil
	}

	var note *notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := claimEvent(tx, ev)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyProcessed
		}

		invoice, err := findInvoiceByCharge(tx, ev.Data.ChargeRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Not a domain charge; the claim alone marks it handled.
				return nil
			}
			return err
		}

		switch kind {
		case KindCreated:
			note, err = s.applyCreated(tx, ev, invoice)
		case KindUpdated:
			note, err = s.applyUpdated(tx, ev, invoice)
		case KindClosed:
			note, err = s.applyClosed(tx, ev, invoice)
		}
		return err
	})
	if errors.Is(err, errAlreadyProcessed) {
		return nil
	}
	if err != nil {
		return err
	}

	// Notification is best-effort and must never roll back the transition,
	// so it runs strictly after commit.
	if note != nil && s.notifier != nil {
		if nerr := s.notifier.NotifyDisputeChange(ctx, *note); nerr != nil {
			log.Errorf("[Disputes] Notification for dispute %s failed: %v", ev.Data.DisputeID, nerr)
		}
	}
	return nil
}

func (s *Service) applyCreated(tx *gorm.DB, ev *DisputeEvent, invoice *models.Invoice) (*notification, error) {
	status := ev.Data.Status
	if status == "" {
		status = models.DisputeStatusNeedsResponse
	}
	if err := updateInvoiceDispute(tx, invoice, ev.Data.DisputeID, status); err != nil {
		return nil, err
	}
	if err := appendDomainEvent(tx, invoice, models.DomainEventDisputeCreated, ev); err != nil {
		return nil, err
	}

	domain, err := findInvoiceDomain(tx, invoice)
	if err != nil {
		return nil, err
	}
	// at_risk is deliberate: suspension waits for the dispute to escalate,
	// which keeps false positives from interrupting service.
	if domain != nil && domain.Status == models.DomainStatusActive {
		if err := transitionDomain(tx, domain, models.DomainStatusAtRisk); err != nil {
			return nil, err
		}
	}
	return s.noteFor(domain, invoice, ev, "created"), nil
}

func (s *Service) applyUpdated(tx *gorm.DB, ev *DisputeEvent, invoice *models.Invoice) (*notification, error) {
	if ev.Data.Status != "" {
		if err := updateInvoiceDispute(tx, invoice, ev.Data.DisputeID, ev.Data.Status); err != nil {
			return nil, err
		}
	}
	if err := appendDomainEvent(tx, invoice, models.DomainEventDisputeUpdated, ev); err != nil {
		return nil, err
	}

	domain, err := findInvoiceDomain(tx, invoice)
	if err != nil {
		return nil, err
	}
	if domain != nil && requiresResponse(ev.Data.Status) && domain.Status == models.DomainStatusAtRisk {
		if err := transitionDomain(tx, domain, models.DomainStatusSuspended); err != nil {
			return nil, err
		}
	}
	return s.noteFor(domain, invoice, ev, "updated"), nil
}

func (s *Service) applyClosed(tx *gorm.DB, ev *DisputeEvent, invoice *models.Invoice) (*notification, error) {
	won := strings.EqualFold(ev.Data.Status, models.DisputeStatusWon)

	outcome := models.DisputeStatusLost
	eventType := models.DomainEventDisputeLost
	if won {
		outcome = models.DisputeStatusWon
		eventType = models.DomainEventDisputeWon
	}
	if err := updateInvoiceDispute(tx, invoice, ev.Data.DisputeID, outcome); err != nil {
		return nil, err
	}
	if err := appendDomainEvent(tx, invoice, eventType, ev); err != nil {
		return nil, err
	}

	domain, err := findInvoiceDomain(tx, invoice)
	if err != nil {
		return nil, err
	}
	if domain != nil {
		if won {
			if domain.Status == models.DomainStatusAtRisk || domain.Status == models.DomainStatusSuspended {
				if err := transitionDomain(tx, domain, models.DomainStatusActive); err != nil {
					return nil, err
				}
			}
		} else if domain.Status != models.DomainStatusSuspended {
			if domain.Status.CanTransitionTo(models.DomainStatusSuspended) {
				if err := transitionDomain(tx, domain, models.DomainStatusSuspended); err != nil {
					return nil, err
				}
			}
		}
	}
	return s.noteFor(domain, invoice, ev, outcome), nil
}

// ListAtRisk returns domains currently held at_risk or suspended.
func (s *Service) ListAtRisk(ctx context.Context, limit, offset int) ([]models.Domain, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var domains []models.Domain
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.DomainStatus{models.DomainStatusAtRisk, models.DomainStatusSuspended}).
		Order("updated_at DESC").Limit(limit).Offset(offset).
		Find(&domains).Error
	return domains, err
}

func claimEvent(tx *gorm.DB, ev *DisputeEvent) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedEvent{
		EventID:   ev.EventID,
		EventType: ev.EventType,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func findInvoiceByCharge(tx *gorm.DB, chargeRef string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := tx.Where("charge_ref = ?", chargeRef).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func findInvoiceDomain(tx *gorm.DB, invoice *models.Invoice) (*models.Domain, error) {
	if invoice.DomainID == nil {
		return nil, nil
	}
	var domain models.Domain
	if err := tx.First(&domain, *invoice.DomainID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain, nil
}

func updateInvoiceDispute(tx *gorm.DB, invoice *models.Invoice, disputeRef, status string) error {
	invoice.DisputeRef = disputeRef
	invoice.DisputeStatus = status
	return tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
		Updates(map[string]interface{}{
			"dispute_ref":    disputeRef,
			"dispute_status": status,
		}).Error
}

func appendDomainEvent(tx *gorm.DB, invoice *models.Invoice, eventType string, ev *DisputeEvent) error {
	metadata, _ := json.Marshal(map[string]interface{}{
		"dispute_id": ev.Data.DisputeID,
		"charge_ref": ev.Data.ChargeRef,
		"status":     ev.Data.Status,
		"reason":     ev.Data.Reason,
		"amount":     ev.Data.Amount,
		"currency":   ev.Data.Currency,
	})
	return tx.Create(&models.DomainEvent{
		DomainID:     invoice.DomainID,
		ProjectID:    invoice.ProjectID,
		EventType:    eventType,
		MetadataJSON: string(metadata),
	}).Error
}

// transitionDomain re-reads nothing: the caller holds the current row inside
// the transaction, and the transition table guards legality.
func transitionDomain(tx *gorm.DB, domain *models.Domain, target models.DomainStatus) error {
	if !domain.Status.CanTransitionTo(target) {
		return fmt.Errorf("illegal domain transition %s -> %s for domain %d", domain.Status, target, domain.ID)
	}
	if domain.Status == target {
		return nil
	}
	res := tx.Model(&models.Domain{}).
		Where("id = ? AND status = ?", domain.ID, domain.Status).
		Updates(map[string]interface{}{"status": target, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("domain %d changed status concurrently", domain.ID)
	}
	domain.Status = target
	return nil
}

func requiresResponse(status string) bool {
	switch status {
	case models.DisputeStatusNeedsResponse, models.DisputeStatusWarningNeedsResponse:
		return true
	default:
		return false
	}
}

func (s *Service) noteFor(domain *models.Domain, invoice *models.Invoice, ev *DisputeEvent, change string) *notification {
	n := &notification{
		DisputeID: ev.Data.DisputeID,
		ChargeRef: ev.Data.ChargeRef,
		Change:    change,
		ProjectID: invoice.ProjectID,
	}
	if domain != nil {
		n.DomainName = domain.Name
		n.DomainStatus = domain.Status
	}
	return n
}
