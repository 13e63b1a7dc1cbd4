package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/webhookledger"
)

// HandleRegistrarWebhook receives registrar push notifications. The sender
// gets its 200 as soon as the event is durably recorded; processing outcomes
// are informational.
func HandleRegistrarWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, models.WebhookSourceRegistrar)
}

// HandlePaymentWebhook receives payment processor events.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	return handleWebhook(c, models.WebhookSourcePayment)
}

func handleWebhook(c *fiber.Ctx, source models.WebhookSource) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	signature := firstHeaderValue(c, "X-Webhook-Signature", "X-Signature")
	if !webhookledger.VerifySignature(source, rawBody, signature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	key := idempotencyKeyFor(c, source, rawBody)
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_event_id"})
	}

	headers := map[string]string{}
	for _, name := range []string{"Content-Type", "User-Agent", "X-Webhook-Signature", "X-Registrar-Delivery"} {
		if v := c.Get(name); v != "" {
			headers[name] = v
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	event, outcome, err := deps.Ledger.Ingest(ctx, webhookledger.IngestInput{
		Source:         source,
		Endpoint:       c.Path(),
		Headers:        headers,
		Body:           rawBody,
		SenderIP:       c.IP(),
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, webhookledger.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_delivery"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "persist_failed"})
	}

	// The delivery is durable from here on; anything that goes wrong in
	// processing feeds the retry machinery, never the sender's response.
	if outcome == webhookledger.OutcomeQueued {
		outcome, _ = deps.Ledger.Process(ctx, event)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event_id": event.ID, "outcome": outcome})
}

// idempotencyKeyFor extracts the delivery's dedup key: the payment processor
// puts an event id in the body, the registrar sends a delivery header. A
// body hash covers senders that provide neither.
func idempotencyKeyFor(c *fiber.Ctx, source models.WebhookSource, body []byte) string {
	if source == models.WebhookSourcePayment {
		var envelope struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && strings.TrimSpace(envelope.ID) != "" {
			return strings.TrimSpace(envelope.ID)
		}
		return ""
	}

	if key := firstHeaderValue(c, "X-Registrar-Delivery", "X-Delivery-ID"); key != "" {
		return key
	}
	sum := sha256.Sum256(body)
	return "body:" + hex.EncodeToString(sum[:])
}
