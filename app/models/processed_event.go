package models

import "time"

// ProcessedEvent is the transactional idempotency guard used by the dispute
// path. The primary key is the processor-assigned event id, so inserting a
// row is the atomic "win" signal: the handler whose insert affects a row owns
// the event, every other concurrent handler rolls back.
type ProcessedEvent struct {
	EventID     string    `gorm:"type:varchar(191);primaryKey" json:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null" json:"event_type"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

// TableName keeps the marker table clearly separated from the webhook ledger.
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
