package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/app/controllers"
)

type WebhookRouter struct {
}

// InstallRouter registers the external-sender endpoints. No rate limiting
// here: senders retry on anything but 200 and the ledger dedupes instead.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	webhooks := app.Group("/api/internal/webhooks")
	webhooks.Post("/registrar", controllers.HandleRegistrarWebhook)
	webhooks.Post("/payment", controllers.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
