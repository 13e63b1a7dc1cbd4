package models

import "time"

// TransferStatus is the lifecycle status of a domain transfer-in.
type TransferStatus string

const (
	TransferStatusPendingPayment TransferStatus = "pending_payment"
	TransferStatusPending        TransferStatus = "pending"
	TransferStatusProcessing     TransferStatus = "processing"
	TransferStatusCompleted      TransferStatus = "completed"
	TransferStatusFailed         TransferStatus = "failed"
	TransferStatusCancelled      TransferStatus = "cancelled"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPendingPayment: {TransferStatusPending, TransferStatusFailed, TransferStatusCancelled},
	TransferStatusPending:        {TransferStatusProcessing, TransferStatusCompleted, TransferStatusFailed, TransferStatusCancelled},
	TransferStatusProcessing:     {TransferStatusCompleted, TransferStatusFailed},
	TransferStatusCompleted:      {},
	TransferStatusFailed:         {},
	TransferStatusCancelled:      {},
}

// CanTransitionTo reports whether moving from s to target is legal.
// Self-transitions are allowed for idempotent re-application.
func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range transferTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s TransferStatus) IsTerminal() bool {
	return len(transferTransitions[s]) == 0
}

// IsCancellable reports whether the transfer can still be aborted. Once the
// registry-side transfer is in flight it cannot be unilaterally cancelled.
func (s TransferStatus) IsCancellable() bool {
	return s == TransferStatusPendingPayment || s == TransferStatusPending
}

// DomainTransfer represents an in-progress domain transfer-in. The
// authorization code is only ever stored as a bcrypt hash, and only after
// the linked payment has been verified.
type DomainTransfer struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	PublicID          string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	ProjectID         uint           `gorm:"not null;index:idx_domain_transfers_project_domain,priority:1" json:"project_id"`
	DomainName        string         `gorm:"type:varchar(255);not null;index:idx_domain_transfers_project_domain,priority:2" json:"domain_name"`
	TLD               string         `gorm:"type:varchar(63);not null" json:"tld"`
	RegistrarOrderID  string         `gorm:"type:varchar(191);index" json:"registrar_order_id"`
	AuthCodeHash      string         `gorm:"type:varchar(191)" json:"-"`
	Status            TransferStatus `gorm:"type:varchar(20);not null;default:'pending_payment';index" json:"status"`
	StatusMessage     string         `gorm:"type:varchar(255)" json:"status_message"`
	RawProviderStatus string         `gorm:"type:varchar(191)" json:"raw_provider_status"`
	SourceRegistrar   string         `gorm:"type:varchar(191)" json:"source_registrar,omitempty"`
	ContactJSON       string         `gorm:"type:longtext" json:"contact_json"`
	PaymentRef        string         `gorm:"type:varchar(191);index" json:"payment_ref"`
	PriceAmount       int64          `gorm:"not null" json:"price_amount"`
	PriceCurrency     string         `gorm:"type:varchar(3);not null" json:"price_currency"`
	DomainID          *uint          `gorm:"index" json:"domain_id,omitempty"`
	InitiatedAt       time.Time      `gorm:"autoCreateTime" json:"initiated_at"`
	CompletedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
