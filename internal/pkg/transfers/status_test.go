package transfers

import (
	"testing"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

func TestNormalizeOrderStatus(t *testing.T) {
	cases := []struct {
		raw   string
		want  models.TransferStatus
		known bool
	}{
		{"pending", models.TransferStatusProcessing, true},
		{"pendingApproval", models.TransferStatusProcessing, true},
		{"PENDING_APPROVAL", models.TransferStatusProcessing, true},
		{"in-progress", models.TransferStatusProcessing, true},
		{"In Progress", models.TransferStatusProcessing, true},
		{"transferring", models.TransferStatusProcessing, true},
		{"completed", models.TransferStatusCompleted, true},
		{"Success", models.TransferStatusCompleted, true},
		{"APPROVED", models.TransferStatusCompleted, true},
		{"failed", models.TransferStatusFailed, true},
		{"rejected", models.TransferStatusFailed, true},
		{"canceled", models.TransferStatusFailed, true},
		{"timed_out", models.TransferStatusFailed, true},
		{"registryLimbo", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, known := NormalizeOrderStatus(tc.raw)
		if known != tc.known {
			t.Fatalf("NormalizeOrderStatus(%q) known = %v, want %v", tc.raw, known, tc.known)
		}
		if known && got != tc.want {
			t.Fatalf("NormalizeOrderStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
