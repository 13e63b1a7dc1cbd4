package webhookledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

func newLedgerDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.WebhookEvent{}); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

type stubDispatcher struct {
	err   error
	calls int
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ *models.WebhookEvent) (string, string, error) {
	d.calls++
	if d.err != nil {
		return "", "", d.err
	}
	return "test.event", `{"ok":true}`, nil
}

func newServiceForTest(t *testing.T, dispatcher Dispatcher) *Service {
	t.Helper()
	return NewService(NewRepository(newLedgerDBForTest(t)), dispatcher, Config{
		MaxRetries:  3,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  time.Hour,
		StuckAfter:  time.Hour,
		Retention:   30 * 24 * time.Hour,
	})
}

func ingestInput(key string) IngestInput {
	return IngestInput{
		Source:         models.WebhookSourceRegistrar,
		Endpoint:       "/api/internal/webhooks/registrar",
		Headers:        map[string]string{"X-Registrar-Signature": "sig"},
		Body:           []byte(`{"event":"transfer.updated"}`),
		SenderIP:       "203.0.113.7",
		IdempotencyKey: key,
	}
}

func TestIngestCreatesSingleRowPerKey(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	ctx := context.Background()

	ev1, outcome, err := svc.Ingest(ctx, ingestInput("evt-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	ev2, outcome, err := svc.Ingest(ctx, ingestInput("evt-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome) // still pending, still claimable
	assert.Equal(t, ev1.ID, ev2.ID)

	var count int64
	require.NoError(t, svc.repo.(*gormRepository).db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIngestRejectsValidationErrors(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	ctx := context.Background()

	_, _, err := svc.Ingest(ctx, IngestInput{Source: "unknown", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, ErrValidation)

	in := ingestInput("")
	_, _, err = svc.Ingest(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = ingestInput(strings.Repeat("x", 200))
	_, _, err = svc.Ingest(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)

	// Malformed deliveries are never persisted.
	var count int64
	require.NoError(t, svc.repo.(*gormRepository).db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestDuplicateOfCompletedEventIsAcknowledged(t *testing.T) {
	dispatcher := &stubDispatcher{}
	svc := newServiceForTest(t, dispatcher)
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-dup"))
	require.NoError(t, err)
	outcome, err := svc.Process(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	_, outcome, err = svc.Ingest(ctx, ingestInput("evt-dup"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestClaimGrantsExactlyOneWinner(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-claim"))
	require.NoError(t, err)

	claimed, err := svc.repo.ClaimEvent(ev.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = svc.repo.ClaimEvent(ev.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	outcome, err := svc.Process(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClaimedByOther, outcome)
}

func TestProcessFailureSchedulesRetryWithBackoff(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("registrar timeout")}
	svc := newServiceForTest(t, dispatcher)
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-retry"))
	require.NoError(t, err)

	outcome, err := svc.Process(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetryScheduled, outcome)

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "registrar timeout")
	require.NotNil(t, stored.NextRetryAt)
	assert.False(t, stored.IsTerminal())
}

func TestRetryCeilingLeavesEventTerminallyFailed(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("still broken")}
	svc := newServiceForTest(t, dispatcher)
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-ceiling"))
	require.NoError(t, err)

	// Drive the event through every retry attempt. Advancing the clock
	// past the stored backoff keeps the claim predicate satisfied.
	var prevBackoff time.Duration
	for attempt := 1; attempt <= svc.cfg.MaxRetries; attempt++ {
		stored, err := svc.Get(ctx, ev.ID)
		require.NoError(t, err)
		if stored.NextRetryAt != nil {
			next := stored.NextRetryAt.Add(time.Second)
			svc.now = func() time.Time { return next }
		}

		_, err = svc.Process(ctx, stored)
		require.NoError(t, err)

		stored, err = svc.Get(ctx, ev.ID)
		require.NoError(t, err)
		if stored.NextRetryAt != nil {
			backoff := svc.backoff(stored.RetryCount)
			assert.GreaterOrEqual(t, backoff, prevBackoff, "backoff must be non-decreasing")
			prevBackoff = backoff
		}
	}

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusFailed, stored.Status)
	assert.Equal(t, svc.cfg.MaxRetries, stored.RetryCount)
	assert.Nil(t, stored.NextRetryAt, "terminal failure must not schedule another retry")
	assert.True(t, stored.IsTerminal())

	failed, err := svc.ListFailed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ev.ID, failed[0].ID)
}

func TestBackoffCappedAtMax(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	assert.Equal(t, 30*time.Second, svc.backoff(1))
	assert.Equal(t, time.Minute, svc.backoff(2))
	assert.Equal(t, 2*time.Minute, svc.backoff(3))
	assert.Equal(t, time.Hour, svc.backoff(12))
	assert.Equal(t, time.Hour, svc.backoff(50))
}

func TestReapStuckResetsAbandonedEvents(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-stuck"))
	require.NoError(t, err)
	claimed, err := svc.repo.ClaimEvent(ev.ID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	// Backdate the claim so it looks abandoned.
	db := svc.repo.(*gormRepository).db
	require.NoError(t, db.Model(&models.WebhookEvent{}).Where("id = ?", ev.ID).
		Update("updated_at", time.Now().Add(-2*time.Hour)).Error)

	reset, err := svc.ReapStuck(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusRetrying, stored.Status)
	require.NotNil(t, stored.NextRetryAt)
}

func TestCleanupRetentionDeletesOnlyOldTerminalRows(t *testing.T) {
	svc := newServiceForTest(t, &stubDispatcher{})
	ctx := context.Background()
	db := svc.repo.(*gormRepository).db

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	retryAt := time.Now().Add(time.Minute)

	rows := []models.WebhookEvent{
		{Source: models.WebhookSourceRegistrar, IdempotencyKey: "old-completed", Body: "{}", Status: models.WebhookStatusCompleted, ReceivedAt: old},
		{Source: models.WebhookSourceRegistrar, IdempotencyKey: "old-terminal-failed", Body: "{}", Status: models.WebhookStatusFailed, ReceivedAt: old},
		{Source: models.WebhookSourceRegistrar, IdempotencyKey: "old-retryable-failed", Body: "{}", Status: models.WebhookStatusFailed, NextRetryAt: &retryAt, ReceivedAt: old},
		{Source: models.WebhookSourceRegistrar, IdempotencyKey: "recent-completed", Body: "{}", Status: models.WebhookStatusCompleted, ReceivedAt: recent},
		{Source: models.WebhookSourceRegistrar, IdempotencyKey: "old-pending", Body: "{}", Status: models.WebhookStatusPending, ReceivedAt: old},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
		require.NoError(t, db.Model(&models.WebhookEvent{}).Where("id = ?", rows[i].ID).
			Update("received_at", rows[i].ReceivedAt).Error)
	}

	deleted, err := svc.CleanupRetention(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.WebhookEvent
	require.NoError(t, db.Find(&remaining).Error)
	keys := make([]string, 0, len(remaining))
	for _, r := range remaining {
		keys = append(keys, r.IdempotencyKey)
	}
	assert.ElementsMatch(t, []string{"old-retryable-failed", "recent-completed", "old-pending"}, keys)
}

func TestReprocessFailedEvent(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("boom")}
	svc := newServiceForTest(t, dispatcher)
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-reprocess"))
	require.NoError(t, err)
	_, err = svc.Process(ctx, ev)
	require.NoError(t, err)

	// Fix the downstream problem, then reprocess from the admin surface.
	dispatcher.err = nil
	outcome, err := svc.Reprocess(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusCompleted, stored.Status)

	// Completed events are not reprocessable.
	_, err = svc.Reprocess(ctx, ev.ID)
	assert.Error(t, err)
}

func TestPumpRetriesProcessesDueEvents(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("downstream down")}
	svc := newServiceForTest(t, dispatcher)
	ctx := context.Background()

	ev, _, err := svc.Ingest(ctx, ingestInput("evt-pump"))
	require.NoError(t, err)
	_, err = svc.Process(ctx, ev)
	require.NoError(t, err)

	// Backoff has not elapsed yet; the pump must leave the event alone.
	n, err := svc.PumpRetries(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	dispatcher.err = nil
	base := time.Now()
	svc.now = func() time.Time { return base.Add(2 * time.Minute) }

	n, err = svc.PumpRetries(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusCompleted, stored.Status)
}
