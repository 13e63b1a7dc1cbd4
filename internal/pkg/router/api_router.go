package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "FlowPages domain API",
		})
	})

	v1 := api.Group("/v1")

	// Availability search carries its own layered rate limit inside the
	// handler so it can emit quota headers.
	v1.Get("/domains/search", controllers.HandleDomainSearch)

	transfersGroup := v1.Group("/transfers")
	transfersGroup.Get("/eligibility", controllers.HandleTransferEligibility)
	transfersGroup.Post("/", controllers.HandleTransferCreate)
	transfersGroup.Get("/", controllers.HandleTransferList)
	transfersGroup.Get("/:id", controllers.HandleTransferGet)
	transfersGroup.Post("/:id/payment", controllers.HandleTransferPayment)
	transfersGroup.Post("/:id/confirm", controllers.HandleTransferConfirm)
	transfersGroup.Post("/:id/poll", controllers.HandleTransferPoll)
	transfersGroup.Post("/:id/cancel", controllers.HandleTransferCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
