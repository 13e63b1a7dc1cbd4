package webhookledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// Outcome is the sender-facing result of an ingestion or processing step.
// Everything except OutcomePersistError is acknowledged with HTTP 200 so the
// sender never hot-retries a delivery that is already durably recorded.
type Outcome string

const (
	OutcomeQueued            Outcome = "queued"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeAlreadyProcessing Outcome = "already_processing"
	OutcomeClaimedByOther    Outcome = "claimed_by_other"
	OutcomeRetryScheduled    Outcome = "retry_scheduled"
	OutcomeProcessed         Outcome = "processed"
	OutcomePersistError      Outcome = "persist_error"
)

// ErrValidation marks malformed inputs that are rejected synchronously and
// never persisted as ledger events.
var ErrValidation = errors.New("webhook validation failed")

// Dispatcher routes a claimed event to its state machine. It returns the
// parsed event type and payload for the ledger record; a non-nil error sends
// the event down the retry/backoff path.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.WebhookEvent) (eventType string, parsedPayload string, err error)
}

// Config carries the externally tunable ledger settings.
type Config struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	StuckAfter  time.Duration
	Retention   time.Duration
}

// ConfigFromEnv reads ledger settings with the documented defaults.
func ConfigFromEnv() Config {
	return Config{
		MaxRetries:  env.GetEnvInt("WEBHOOK_MAX_RETRIES", 12),
		BaseBackoff: env.GetEnvDuration("WEBHOOK_BASE_BACKOFF", 30*time.Second),
		MaxBackoff:  env.GetEnvDuration("WEBHOOK_MAX_BACKOFF", time.Hour),
		StuckAfter:  env.GetEnvDuration("WEBHOOK_STUCK_AFTER", 60*time.Minute),
		Retention:   env.GetEnvDuration("WEBHOOK_RETENTION", 30*24*time.Hour),
	}
}

// FailureNotifier is told about events that exhaust their retry budget so
// an operator can intervene. Notification failures are logged, not retried.
type FailureNotifier interface {
	NotifyTerminalFailure(event *models.WebhookEvent, cause error)
}

// Service converts at-least-once webhook delivery into exactly-once
// processing: persist first, claim atomically, retry with capped backoff.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	cfg        Config
	notifier   FailureNotifier
	now        func() time.Time
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository, dispatcher Dispatcher, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 12
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	return &Service{repo: repo, dispatcher: dispatcher, cfg: cfg, now: time.Now}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dispatcher Dispatcher, cfg Config) *Service {
	return NewService(NewRepository(db), dispatcher, cfg)
}

// SetFailureNotifier attaches the operator alerting hook.
func (s *Service) SetFailureNotifier(n FailureNotifier) {
	s.notifier = n
}

// IngestInput is one raw inbound delivery.
type IngestInput struct {
	Source         models.WebhookSource
	Endpoint       string
	Headers        map[string]string
	Body           []byte
	SenderIP       string
	IdempotencyKey string
}

// Ingest durably records a delivery and reports whether the caller should
// proceed to Process it. A second delivery of the same (source, key) never
// creates a second row.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*models.WebhookEvent, Outcome, error) {
	_ = ctx
	key := strings.TrimSpace(in.IdempotencyKey)
	if in.Source != models.WebhookSourceRegistrar && in.Source != models.WebhookSourcePayment {
		return nil, OutcomePersistError, fmt.Errorf("%w: unknown source %q", ErrValidation, in.Source)
	}
	if key == "" || len(key) > 191 {
		return nil, OutcomePersistError, fmt.Errorf("%w: idempotency key missing or too long", ErrValidation)
	}

	headersJSON := ""
	if len(in.Headers) > 0 {
		if data, err := json.Marshal(in.Headers); err == nil {
			headersJSON = string(data)
		}
	}

	event := &models.WebhookEvent{
		Source:         in.Source,
		Endpoint:       in.Endpoint,
		HeadersJSON:    headersJSON,
		Body:           string(in.Body),
		SenderIP:       in.SenderIP,
		IdempotencyKey: key,
		Status:         models.WebhookStatusPending,
	}

	created, stored, err := s.repo.CreateEventIfNotExists(event)
	if err != nil {
		return nil, OutcomePersistError, err
	}
	if created {
		return stored, OutcomeQueued, nil
	}

	switch {
	case stored.Status == models.WebhookStatusCompleted:
		return stored, OutcomeDuplicate, nil
	case stored.Status == models.WebhookStatusProcessing:
		return stored, OutcomeAlreadyProcessing, nil
	case stored.IsClaimable(s.now()):
		return stored, OutcomeQueued, nil
	default:
		return stored, OutcomeRetryScheduled, nil
	}
}

// Process claims the event and runs it through the dispatcher. Losing the
// claim race is success, not an error: someone else owns the event.
func (s *Service) Process(ctx context.Context, event *models.WebhookEvent) (Outcome, error) {
	claimed, err := s.repo.ClaimEvent(event.ID, s.now())
	if err != nil {
		return OutcomePersistError, err
	}
	if !claimed {
		return OutcomeClaimedByOther, nil
	}

	eventType, payload, dispatchErr := s.dispatcher.Dispatch(ctx, event)
	if dispatchErr != nil {
		if failErr := s.fail(event, dispatchErr); failErr != nil {
			return OutcomePersistError, failErr
		}
		// The sender already got its durable ack; failures feed the
		// retry machinery instead of propagating.
		log.Errorf("[WebhookLedger] Event %d (%s) failed: %v", event.ID, event.Source, dispatchErr)
		return OutcomeRetryScheduled, nil
	}

	if err := s.repo.MarkCompleted(event.ID, eventType, payload, s.now()); err != nil {
		return OutcomePersistError, err
	}
	return OutcomeProcessed, nil
}

func (s *Service) fail(event *models.WebhookEvent, cause error) error {
	retryCount := event.RetryCount + 1
	var nextRetryAt *time.Time
	if retryCount < s.cfg.MaxRetries {
		next := s.now().Add(s.backoff(retryCount))
		nextRetryAt = &next
	} else {
		log.Errorf("[WebhookLedger] Event %d reached retry ceiling (%d), leaving terminally failed", event.ID, s.cfg.MaxRetries)
		if s.notifier != nil {
			s.notifier.NotifyTerminalFailure(event, cause)
		}
	}
	return s.repo.MarkFailed(event.ID, cause.Error(), retryCount, nextRetryAt)
}

// backoff returns the exponential delay for the given attempt, capped at the
// configured maximum. It is non-decreasing across consecutive failures.
func (s *Service) backoff(retryCount int) time.Duration {
	d := s.cfg.BaseBackoff
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= s.cfg.MaxBackoff {
			return s.cfg.MaxBackoff
		}
	}
	if d > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return d
}

// PumpRetries picks up events whose backoff has elapsed and runs them. The
// claim in Process makes concurrent pumps safe.
func (s *Service) PumpRetries(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	due, err := s.repo.ListDueRetries(s.now(), batchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for i := range due {
		outcome, err := s.Process(ctx, &due[i])
		if err != nil {
			log.Errorf("[WebhookLedger] Retry of event %d errored: %v", due[i].ID, err)
			continue
		}
		if outcome == OutcomeProcessed {
			processed++
		}
	}
	return processed, nil
}

// ReapStuck resets events stuck in processing beyond the configured
// threshold, symptomatic of a worker that claimed but crashed.
func (s *Service) ReapStuck(ctx context.Context) (int64, error) {
	_ = ctx
	now := s.now()
	reset, err := s.repo.ResetStuck(now.Add(-s.cfg.StuckAfter), now.Add(s.cfg.BaseBackoff))
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		log.Warnf("[WebhookLedger] Recovered %d stuck event(s)", reset)
	}
	return reset, nil
}

// CleanupRetention deletes terminal events past the retention window.
func (s *Service) CleanupRetention(ctx context.Context) (int64, error) {
	_ = ctx
	return s.repo.DeleteTerminalOlderThan(s.now().Add(-s.cfg.Retention))
}

// Reprocess puts a failed event back in line and runs it immediately.
func (s *Service) Reprocess(ctx context.Context, id uint) (Outcome, error) {
	event, err := s.repo.GetByID(id)
	if err != nil {
		return OutcomePersistError, err
	}
	requeued, err := s.repo.RequeueForRetry(id, s.now())
	if err != nil {
		return OutcomePersistError, err
	}
	if !requeued {
		return OutcomeAlreadyProcessing, fmt.Errorf("event %d is not in a reprocessable state (%s)", id, event.Status)
	}
	event.Status = models.WebhookStatusRetrying
	return s.Process(ctx, event)
}

// Get returns a single ledger event.
func (s *Service) Get(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	_ = ctx
	return s.repo.GetByID(id)
}

// List returns ledger events, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]models.WebhookEvent, error) {
	_ = ctx
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(status, limit, offset)
}

// ListFailed returns terminally failed events for the alerting surface.
func (s *Service) ListFailed(ctx context.Context, limit, offset int) ([]models.WebhookEvent, error) {
	_ = ctx
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListTerminallyFailed(limit, offset)
}
