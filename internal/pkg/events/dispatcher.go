package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/disputes"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/transfers"
)

// registrarEvent is the push payload the registrar sends when a transfer
// order changes state.
type registrarEvent struct {
	Event         string `json:"event"`
	OrderID       string `json:"order_id"`
	Domain        string `json:"domain,omitempty"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
}

// Dispatcher routes ledger events to the dispute and transfer handlers. A
// returned error puts the event on the retry/backoff path; events the system
// has no handler for complete immediately so they never clog the retry loop.
type Dispatcher struct {
	disputes  *disputes.Service
	transfers *transfers.Service
}

func NewDispatcher(disputeSvc *disputes.Service, transferSvc *transfers.Service) *Dispatcher {
	return &Dispatcher{disputes: disputeSvc, transfers: transferSvc}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event *models.WebhookEvent) (string, string, error) {
	switch event.Source {
	case models.WebhookSourcePayment:
		return d.dispatchPayment(ctx, event)
	case models.WebhookSourceRegistrar:
		return d.dispatchRegistrar(ctx, event)
	default:
		return "", "", fmt.Errorf("no handler for source %q", event.Source)
	}
}

func (d *Dispatcher) dispatchPayment(ctx context.Context, event *models.WebhookEvent) (string, string, error) {
	ev, err := disputes.ParseEvent([]byte(event.Body))
	if err != nil {
		return "", "", fmt.Errorf("parse payment event: %w", err)
	}

	parsed, _ := json.Marshal(ev)
	if ev.Kind() == "" {
		// Payment events outside the dispute lifecycle (intent updates,
		// refunds) carry no state transition here. The payment gate pulls
		// intent status on demand instead of reacting to pushes.
		log.Infof("[Events] Ignoring payment event type %q (%s)", ev.EventType, ev.EventID)
		return ev.EventType, string(parsed), nil
	}

	if err := d.disputes.HandleEvent(ctx, ev); err != nil {
		return "", "", err
	}
	return ev.EventType, string(parsed), nil
}

func (d *Dispatcher) dispatchRegistrar(ctx context.Context, event *models.WebhookEvent) (string, string, error) {
	var ev registrarEvent
	if err := json.Unmarshal([]byte(event.Body), &ev); err != nil {
		return "", "", fmt.Errorf("parse registrar event: %w", err)
	}
	parsed, _ := json.Marshal(ev)

	if !strings.HasPrefix(ev.Event, "transfer.") {
		log.Infof("[Events] Ignoring registrar event type %q", ev.Event)
		return ev.Event, string(parsed), nil
	}
	if ev.OrderID == "" {
		return "", "", fmt.Errorf("registrar transfer event without order_id")
	}

	// A push can outrun the confirm path persisting the order id; the
	// record-not-found error lands the event in the retry queue.
	_, err := d.transfers.ApplyOrderUpdate(ctx, &registrar.TransferOrder{
		OrderID:       ev.OrderID,
		Status:        ev.Status,
		StatusMessage: ev.StatusMessage,
	})
	if err != nil {
		return "", "", err
	}
	return ev.Event, string(parsed), nil
}
