package models

import "time"

// DomainPricing holds per-TLD registrar pricing in minor currency units.
// Rows are written by the periodic pricing sync job and read through the
// pricing cache; they are never mutated by request handlers.
type DomainPricing struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TLD           string    `gorm:"type:varchar(63);not null;uniqueIndex" json:"tld"`
	RegisterPrice int64     `gorm:"not null" json:"register_price"`
	TransferPrice int64     `gorm:"not null" json:"transfer_price"`
	RenewPrice    int64     `gorm:"not null" json:"renew_price"`
	Currency      string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	SyncedAt      time.Time `gorm:"not null" json:"synced_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
