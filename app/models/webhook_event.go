package models

import "time"

// WebhookSource identifies the external system that delivered a webhook.
type WebhookSource string

const (
	WebhookSourceRegistrar WebhookSource = "registrar"
	WebhookSourcePayment   WebhookSource = "payment"
)

// WebhookEventStatus is the processing state of a persisted delivery.
type WebhookEventStatus string

const (
	WebhookStatusPending    WebhookEventStatus = "pending"
	WebhookStatusProcessing WebhookEventStatus = "processing"
	WebhookStatusCompleted  WebhookEventStatus = "completed"
	WebhookStatusFailed     WebhookEventStatus = "failed"
	WebhookStatusRetrying   WebhookEventStatus = "retrying"
)

// WebhookEvent stores one inbound delivery attempt verbatim, independent of
// whether downstream processing succeeds. The unique (source, idempotency_key)
// index guarantees a second delivery of the same logical event never creates
// a second row.
type WebhookEvent struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	Source         WebhookSource      `gorm:"type:varchar(20);not null;index:ux_webhook_events_source_idem,unique,priority:1;index" json:"source"`
	Endpoint       string             `gorm:"type:varchar(191);not null" json:"endpoint"`
	HeadersJSON    string             `gorm:"type:longtext" json:"headers_json"`
	Body           string             `gorm:"type:longtext;not null" json:"body"`
	SenderIP       string             `gorm:"type:varchar(45)" json:"sender_ip"`
	IdempotencyKey string             `gorm:"type:varchar(191);not null;index:ux_webhook_events_source_idem,unique,priority:2" json:"idempotency_key"`
	Status         WebhookEventStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReceivedAt     time.Time          `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt    *time.Time         `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	LastError      string             `gorm:"type:text" json:"last_error"`
	RetryCount     int                `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt    *time.Time         `gorm:"type:timestamp;default:null;index" json:"next_retry_at,omitempty"`
	EventType      string             `gorm:"type:varchar(100);index" json:"event_type"`
	ParsedPayload  string             `gorm:"type:longtext" json:"parsed_payload"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsClaimable reports whether the event may be handed to a processor right
// now. Retrying and failed events are only claimable once their backoff has
// elapsed; terminally failed events carry a nil NextRetryAt and stay put.
func (e *WebhookEvent) IsClaimable(now time.Time) bool {
	switch e.Status {
	case WebhookStatusPending:
		return true
	case WebhookStatusRetrying, WebhookStatusFailed:
		return e.NextRetryAt != nil && !e.NextRetryAt.After(now)
	default:
		return false
	}
}

// IsTerminal reports whether the event will never be retried automatically.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusCompleted ||
		(e.Status == WebhookStatusFailed && e.NextRetryAt == nil)
}
