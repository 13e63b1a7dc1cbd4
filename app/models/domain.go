package models

import "time"

// DomainStatus is the lifecycle status of a managed domain.
type DomainStatus string

const (
	DomainStatusPending   DomainStatus = "pending"
	DomainStatusActive    DomainStatus = "active"
	DomainStatusAtRisk    DomainStatus = "at_risk"
	DomainStatusSuspended DomainStatus = "suspended"
	DomainStatusFailed    DomainStatus = "failed"
)

// domainTransitions is the single source of truth for legal domain status
// changes. Every mutation path must consult it via CanTransitionTo.
var domainTransitions = map[DomainStatus][]DomainStatus{
	DomainStatusPending:   {DomainStatusActive, DomainStatusFailed},
	DomainStatusActive:    {DomainStatusAtRisk, DomainStatusSuspended},
	DomainStatusAtRisk:    {DomainStatusSuspended, DomainStatusActive},
	DomainStatusSuspended: {DomainStatusActive},
	DomainStatusFailed:    {},
}

// CanTransitionTo reports whether moving from s to target is a legal
// transition. Self-transitions are allowed so idempotent re-application of
// an event is a no-op rather than an error.
func (s DomainStatus) CanTransitionTo(target DomainStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range domainTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Domain represents a registered or managed domain owned by a project.
type Domain struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ProjectID uint         `gorm:"not null;index" json:"project_id"`
	Name      string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Status    DomainStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}
