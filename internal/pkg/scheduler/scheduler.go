package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/pricing"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/webhookledger"
)

// Scheduler owns the periodic maintenance jobs: the webhook retry pump, the
// stuck-event reaper, ledger retention cleanup and the pricing sync.
type Scheduler struct {
	inner   gocron.Scheduler
	ledger  *webhookledger.Service
	pricing *pricing.Service
}

func New(ledger *webhookledger.Service, pricingSvc *pricing.Service) (*Scheduler, error) {
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{inner: inner, ledger: ledger, pricing: pricingSvc}, nil
}

// Start registers all jobs and begins running them. Intervals come from the
// environment with production defaults.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{
			name:     "webhook-retry-pump",
			interval: env.GetEnvDuration("JOB_RETRY_PUMP_INTERVAL", 30*time.Second),
			run: func() {
				if n, err := s.ledger.PumpRetries(ctx, 50); err != nil {
					log.Errorf("[Scheduler] Retry pump failed: %v", err)
				} else if n > 0 {
					log.Infof("[Scheduler] Retry pump processed %d event(s)", n)
				}
			},
		},
		{
			name:     "webhook-stuck-reaper",
			interval: env.GetEnvDuration("JOB_REAPER_INTERVAL", 5*time.Minute),
			run: func() {
				if _, err := s.ledger.ReapStuck(ctx); err != nil {
					log.Errorf("[Scheduler] Stuck-event reaper failed: %v", err)
				}
			},
		},
		{
			name:     "webhook-retention-cleanup",
			interval: env.GetEnvDuration("JOB_RETENTION_INTERVAL", 24*time.Hour),
			run: func() {
				if n, err := s.ledger.CleanupRetention(ctx); err != nil {
					log.Errorf("[Scheduler] Retention cleanup failed: %v", err)
				} else if n > 0 {
					log.Infof("[Scheduler] Retention cleanup removed %d event(s)", n)
				}
			},
		},
		{
			name:     "pricing-sync",
			interval: env.GetEnvDuration("JOB_PRICING_SYNC_INTERVAL", 12*time.Hour),
			run: func() {
				if _, err := s.pricing.Sync(ctx); err != nil {
					log.Errorf("[Scheduler] Pricing sync failed: %v", err)
				}
			},
		},
	}

	for _, job := range jobs {
		if _, err := s.inner.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.run),
			gocron.WithName(job.name),
		); err != nil {
			return err
		}
		log.Infof("[Scheduler] Registered job %s (every %s)", job.name, job.interval)
	}

	s.inner.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.inner.Shutdown()
}
