package models

import "time"

const (
	DisputeStatusNone                 = "none"
	DisputeStatusWarningNeedsResponse = "warning_needs_response"
	DisputeStatusNeedsResponse        = "needs_response"
	DisputeStatusUnderReview          = "under_review"
	DisputeStatusWon                  = "won"
	DisputeStatusLost                 = "lost"
)

// Invoice is the payment record for a domain purchase, renewal or transfer
// charge. DisputeStatus mirrors the last dispute event applied for the
// charge and is only ever written by a claimed dispute event.
type Invoice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"not null;index" json:"project_id"`
	DomainID      *uint     `gorm:"index" json:"domain_id,omitempty"`
	ChargeRef     string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"charge_ref"`
	DisputeRef    string    `gorm:"type:varchar(191);index" json:"dispute_ref"`
	DisputeStatus string    `gorm:"type:varchar(32);not null;default:'none'" json:"dispute_status"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
