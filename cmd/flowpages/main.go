package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/FlowPagesHQ/FlowPages/app/controllers"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/cache"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/database"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/disputes"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/events"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/payments"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/pricing"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/ratelimit"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/router"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/scheduler"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/transfers"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/webhookledger"
)

func main() {
	app, jobs := NewApplication()
	defer func() {
		if err := jobs.Stop(); err != nil {
			log.Printf("scheduler shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *scheduler.Scheduler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	registrarClient := registrar.NewHTTPClientFromEnv()
	paymentClient := payments.NewHTTPClientFromEnv()

	pricingSvc := pricing.NewService(db, registrarClient)
	disputeSvc := disputes.NewService(db, disputes.NewMailNotifier())
	transferSvc := transfers.NewService(
		transfers.NewRepository(db),
		registrarClient,
		paymentClient,
		pricingSvc,
		nil, // DNS auto-configuration ships with the zone manager
	)

	dispatcher := events.NewDispatcher(disputeSvc, transferSvc)
	ledgerSvc := webhookledger.NewServiceFromDB(db, dispatcher, webhookledger.ConfigFromEnv())
	ledgerSvc.SetFailureNotifier(webhookledger.MailFailureNotifier{})

	limiter := ratelimit.NewLimiter(cache.GetClient(), ratelimit.ConfigFromEnv(), ratelimit.NewMemoryWindow())

	controllers.Setup(controllers.Deps{
		Ledger:    ledgerSvc,
		Disputes:  disputeSvc,
		Transfers: transferSvc,
		Pricing:   pricingSvc,
		Limiter:   limiter,
		Registrar: registrarClient,
		Payments:  paymentClient,
	})

	jobs, err := scheduler.New(ledgerSvc, pricingSvc)
	if err != nil {
		panic(fmt.Sprintf("scheduler init failed: %v", err))
	}
	if err := jobs.Start(context.Background()); err != nil {
		panic(fmt.Sprintf("scheduler start failed: %v", err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	app.Use(recover.New(), logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	router.InstallRouter(app)

	return app, jobs
}
