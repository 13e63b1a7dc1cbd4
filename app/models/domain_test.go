package models

import "testing"

func TestDomainStatusTransitions(t *testing.T) {
	tests := []struct {
		from DomainStatus
		to   DomainStatus
		want bool
	}{
		{DomainStatusActive, DomainStatusAtRisk, true},
		{DomainStatusActive, DomainStatusSuspended, true}, // direct closed(lost) path
		{DomainStatusAtRisk, DomainStatusSuspended, true},
		{DomainStatusAtRisk, DomainStatusActive, true},
		{DomainStatusSuspended, DomainStatusActive, true},
		{DomainStatusSuspended, DomainStatusAtRisk, false},
		{DomainStatusPending, DomainStatusActive, true},
		{DomainStatusPending, DomainStatusSuspended, false},
		{DomainStatusFailed, DomainStatusActive, false},
		{DomainStatusActive, DomainStatusActive, true}, // idempotent no-op
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDomainStatusNoThirdPathToSuspended(t *testing.T) {
	// Only active (direct lost) and at_risk may reach suspended.
	for from := range domainTransitions {
		if from == DomainStatusActive || from == DomainStatusAtRisk || from == DomainStatusSuspended {
			continue
		}
		if from.CanTransitionTo(DomainStatusSuspended) {
			t.Fatalf("unexpected path to suspended from %s", from)
		}
	}
}
