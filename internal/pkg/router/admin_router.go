package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/app/controllers"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/middleware"
)

type AdminRouter struct {
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	admin := app.Group("/admin/api", middleware.AdminAuthMiddleware())

	admin.Get("/webhook-events", controllers.HandleAdminWebhookEvents)
	admin.Get("/webhook-events/failed", controllers.HandleAdminWebhookFailed)
	admin.Get("/webhook-events/:id", controllers.HandleAdminWebhookEventDetail)
	admin.Post("/webhook-events/:id/reprocess", controllers.HandleAdminWebhookReprocess)

	admin.Get("/health/pricing", controllers.HandleAdminPricingHealth)
	admin.Get("/health/transfers", controllers.HandleAdminTransferHealth)
	admin.Get("/domains/at-risk", controllers.HandleAdminAtRiskDomains)
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}
