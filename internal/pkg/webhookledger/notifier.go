package webhookledger

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/mail"
)

// MailFailureNotifier emails the ops inbox when an event goes terminally
// failed. The event body is not included; the admin surface has it.
type MailFailureNotifier struct{}

func (MailFailureNotifier) NotifyTerminalFailure(event *models.WebhookEvent, cause error) {
	to := env.GetEnv("OPS_NOTIFY_EMAIL", "")
	if to == "" {
		return
	}
	subject := fmt.Sprintf("Webhook event %d (%s) terminally failed", event.ID, event.Source)
	body := fmt.Sprintf(
		"Webhook event %d from source %q exhausted its retry budget.\n\nIdempotency key: %s\nLast error: %v\n\nInspect and reprocess it via the admin API.\n",
		event.ID, event.Source, event.IdempotencyKey, cause,
	)
	if err := mail.SendMail(to, subject, body); err != nil {
		log.Errorf("[WebhookLedger] Failed to send terminal-failure notification for event %d: %v", event.ID, err)
	}
}
