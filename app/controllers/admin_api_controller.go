package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// HandleAdminWebhookEvents lists ledger events for the ops surface,
// optionally filtered by status.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	events, err := deps.Ledger.List(ctx, c.Query("status"), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleAdminWebhookEventDetail returns one ledger event with its stored
// headers, body and processing history.
func HandleAdminWebhookEventDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	event, err := deps.Ledger.Get(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	return c.JSON(event)
}

// HandleAdminWebhookReprocess re-queues a failed event and runs it now.
func HandleAdminWebhookReprocess(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	outcome, err := deps.Ledger.Reprocess(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_reprocessable", "message": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true, "outcome": outcome})
}

// HandleAdminWebhookFailed lists events that exhausted their retry budget.
func HandleAdminWebhookFailed(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	events, err := deps.Ledger.ListFailed(ctx, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleAdminPricingHealth reports the freshness of the synced price list.
func HandleAdminPricingHealth(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	report, err := deps.Pricing.Health(ctx, env.GetEnvDuration("PRICING_MAX_SYNC_AGE", 24*time.Hour))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "health_failed"})
	}
	return c.JSON(report)
}

// HandleAdminTransferHealth reports transfers stuck in flight.
func HandleAdminTransferHealth(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	report, err := deps.Transfers.Health(ctx, env.GetEnvDuration("TRANSFER_STALE_AFTER", 14*24*time.Hour))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "health_failed"})
	}
	return c.JSON(report)
}

// HandleAdminAtRiskDomains lists domains under dispute pressure.
func HandleAdminAtRiskDomains(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	domains, err := deps.Disputes.ListAtRisk(ctx, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{"domains": domains})
}
