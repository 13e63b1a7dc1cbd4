package models

import "time"

const (
	DomainEventDisputeCreated    = "dispute_created"
	DomainEventDisputeUpdated    = "dispute_updated"
	DomainEventDisputeWon        = "dispute_won"
	DomainEventDisputeLost       = "dispute_lost"
	DomainEventTransferStarted   = "transfer_started"
	DomainEventTransferCompleted = "transfer_completed"
	DomainEventTransferFailed    = "transfer_failed"
)

// DomainEvent is an append-only audit record. Rows are never updated or
// deleted; DomainID is nullable because a dispute can reference a charge
// whose domain has since been removed.
type DomainEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DomainID     *uint     `gorm:"index" json:"domain_id,omitempty"`
	ProjectID    uint      `gorm:"not null;index" json:"project_id"`
	EventType    string    `gorm:"type:varchar(50);not null;index" json:"event_type"`
	MetadataJSON string    `gorm:"type:longtext" json:"metadata_json"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
