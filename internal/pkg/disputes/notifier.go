package disputes

import (
	"context"
	"fmt"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/mail"
)

type notification struct {
	DisputeID    string
	ChargeRef    string
	Change       string
	ProjectID    uint
	DomainName   string
	DomainStatus models.DomainStatus
}

// Notifier delivers best-effort operator notifications after a dispute
// transition has committed. Implementations must not block for long.
type Notifier interface {
	NotifyDisputeChange(ctx context.Context, n notification) error
}

// MailNotifier emails the operations address configured in the environment.
type MailNotifier struct{}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{}
}

func (m *MailNotifier) NotifyDisputeChange(ctx context.Context, n notification) error {
	_ = ctx
	to := env.GetEnv("OPS_NOTIFY_EMAIL", "")
	if to == "" {
		return nil
	}
	subject := fmt.Sprintf("Dispute %s %s", n.DisputeID, n.Change)
	body := fmt.Sprintf(
		"Dispute %s (%s) for charge %s, project %d.<br>Domain: %s (status: %s)",
		n.DisputeID, n.Change, n.ChargeRef, n.ProjectID, n.DomainName, n.DomainStatus,
	)
	return mail.SendMail(to, subject, body)
}
