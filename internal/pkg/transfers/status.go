package transfers

import (
	"strings"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

// orderStatusMap maps canonicalized registrar order statuses onto transfer
// states. The mapping is provisional: registries and TLDs disagree on status
// vocabulary, so unknown statuses never advance the state machine and the
// raw provider string is always preserved verbatim for diagnostics.
var orderStatusMap = map[string]models.TransferStatus{
	"pending":         models.TransferStatusProcessing,
	"pendingapproval": models.TransferStatusProcessing,
	"submitted":       models.TransferStatusProcessing,
	"inprogress":      models.TransferStatusProcessing,
	"processing":      models.TransferStatusProcessing,
	"transferring":    models.TransferStatusProcessing,
	"queued":          models.TransferStatusProcessing,

	"completed":  models.TransferStatusCompleted,
	"complete":   models.TransferStatusCompleted,
	"success":    models.TransferStatusCompleted,
	"successful": models.TransferStatusCompleted,
	"approved":   models.TransferStatusCompleted,
	"done":       models.TransferStatusCompleted,

	"failed":   models.TransferStatusFailed,
	"rejected": models.TransferStatusFailed,
	"denied":   models.TransferStatusFailed,
	"cancelled": models.TransferStatusFailed,
	"canceled":  models.TransferStatusFailed,
	"error":     models.TransferStatusFailed,
	"timedout":  models.TransferStatusFailed,
}

// NormalizeOrderStatus canonicalizes a raw provider status string
// (case/whitespace/underscore/dash-insensitive) and maps it onto a transfer
// state. ok is false for statuses outside the known vocabulary.
func NormalizeOrderStatus(raw string) (models.TransferStatus, bool) {
	canon := strings.ToLower(strings.TrimSpace(raw))
	canon = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(canon)
	status, ok := orderStatusMap[canon]
	return status, ok
}
