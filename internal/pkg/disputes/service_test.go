package disputes

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

func newDisputeDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Domain{},
		&models.DomainEvent{},
		&models.Invoice{},
		&models.ProcessedEvent{},
	); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

type recordingNotifier struct {
	notes []notification
}

func (r *recordingNotifier) NotifyDisputeChange(_ context.Context, n notification) error {
	r.notes = append(r.notes, n)
	return nil
}

func seedDomainAndInvoice(t *testing.T, db *gorm.DB) (*models.Domain, *models.Invoice) {
	t.Helper()
	domain := &models.Domain{ProjectID: 7, Name: "example.com", Status: models.DomainStatusActive}
	require.NoError(t, db.Create(domain).Error)
	invoice := &models.Invoice{
		ProjectID: 7,
		DomainID:  &domain.ID,
		ChargeRef: "ch_123",
		Amount:    1499,
		Currency:  "USD",
	}
	require.NoError(t, db.Create(invoice).Error)
	return domain, invoice
}

func disputeEvent(eventID, eventType, status string) *DisputeEvent {
	ev := &DisputeEvent{EventID: eventID, EventType: eventType}
	ev.Data.DisputeID = "dp_1"
	ev.Data.ChargeRef = "ch_123"
	ev.Data.Status = status
	ev.Data.Amount = 1499
	ev.Data.Currency = "USD"
	return ev
}

func domainStatus(t *testing.T, db *gorm.DB, id uint) models.DomainStatus {
	t.Helper()
	var d models.Domain
	require.NoError(t, db.First(&d, id).Error)
	return d.Status
}

func TestDisputeEscalationLattice(t *testing.T) {
	db := newDisputeDBForTest(t)
	notifier := &recordingNotifier{}
	svc := NewService(db, notifier)
	ctx := context.Background()
	domain, invoice := seedDomainAndInvoice(t, db)

	// created: active -> at_risk
	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_1", "charge.dispute.created", models.DisputeStatusWarningNeedsResponse)))
	assert.Equal(t, models.DomainStatusAtRisk, domainStatus(t, db, domain.ID))

	// updated with needs_response: at_risk -> suspended
	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_2", "charge.dispute.updated", models.DisputeStatusNeedsResponse)))
	assert.Equal(t, models.DomainStatusSuspended, domainStatus(t, db, domain.ID))

	// closed(lost): stays suspended
	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_3", "charge.dispute.closed", models.DisputeStatusLost)))
	assert.Equal(t, models.DomainStatusSuspended, domainStatus(t, db, domain.ID))

	var stored models.Invoice
	require.NoError(t, db.First(&stored, invoice.ID).Error)
	assert.Equal(t, models.DisputeStatusLost, stored.DisputeStatus)
	assert.Equal(t, "dp_1", stored.DisputeRef)

	var eventTypes []string
	require.NoError(t, db.Model(&models.DomainEvent{}).Order("id").Pluck("event_type", &eventTypes).Error)
	assert.Equal(t, []string{
		models.DomainEventDisputeCreated,
		models.DomainEventDisputeUpdated,
		models.DomainEventDisputeLost,
	}, eventTypes)

	assert.Len(t, notifier.notes, 3)
}

func TestDisputeClosedWonRestoresDomain(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	domain, _ := seedDomainAndInvoice(t, db)

	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_1", "charge.dispute.created", models.DisputeStatusNeedsResponse)))
	assert.Equal(t, models.DomainStatusAtRisk, domainStatus(t, db, domain.ID))

	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_2", "charge.dispute.closed", models.DisputeStatusWon)))
	assert.Equal(t, models.DomainStatusActive, domainStatus(t, db, domain.ID))

	var won int64
	require.NoError(t, db.Model(&models.DomainEvent{}).
		Where("event_type = ?", models.DomainEventDisputeWon).Count(&won).Error)
	assert.EqualValues(t, 1, won)
}

func TestDisputeClosedLostSuspendsDirectly(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	domain, _ := seedDomainAndInvoice(t, db)

	// closed(lost) arriving first (out of order): active -> suspended directly.
	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_1", "charge.dispute.closed", models.DisputeStatusLost)))
	assert.Equal(t, models.DomainStatusSuspended, domainStatus(t, db, domain.ID))
}

func TestDisputeReplayProducesNoAdditionalEffects(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	domain, _ := seedDomainAndInvoice(t, db)

	ev := disputeEvent("evt_replay", "charge.dispute.created", models.DisputeStatusNeedsResponse)
	require.NoError(t, svc.HandleEvent(ctx, ev))
	require.NoError(t, svc.HandleEvent(ctx, ev))
	require.NoError(t, svc.HandleEvent(ctx, ev))

	var auditRows int64
	require.NoError(t, db.Model(&models.DomainEvent{}).Count(&auditRows).Error)
	assert.EqualValues(t, 1, auditRows, "replaying the same event must not append audit rows")
	assert.Equal(t, models.DomainStatusAtRisk, domainStatus(t, db, domain.ID))
}

func TestDisputeForUnknownChargeIsMarkedProcessed(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	ev := disputeEvent("evt_unknown", "charge.dispute.created", models.DisputeStatusNeedsResponse)
	ev.Data.ChargeRef = "ch_not_ours"
	require.NoError(t, svc.HandleEvent(ctx, ev))

	var marker models.ProcessedEvent
	require.NoError(t, db.First(&marker, "event_id = ?", "evt_unknown").Error)

	var auditRows int64
	require.NoError(t, db.Model(&models.DomainEvent{}).Count(&auditRows).Error)
	assert.EqualValues(t, 0, auditRows)
}

func TestDisputeUpdatedWithoutEscalationKeepsAtRisk(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	domain, _ := seedDomainAndInvoice(t, db)

	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_1", "charge.dispute.created", models.DisputeStatusNeedsResponse)))
	require.NoError(t, svc.HandleEvent(ctx, disputeEvent("evt_2", "charge.dispute.updated", models.DisputeStatusUnderReview)))
	assert.Equal(t, models.DomainStatusAtRisk, domainStatus(t, db, domain.ID))
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_1","type":"charge.dispute.created","data":{"dispute_id":"dp_1","charge":"ch_1","status":"needs_response"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindCreated, ev.Kind())
	assert.Equal(t, "ch_1", ev.Data.ChargeRef)

	_, err = ParseEvent([]byte(`{"type":"charge.dispute.created","data":{"charge":"ch_1"}}`))
	assert.Error(t, err, "missing event id must be rejected")

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)

	ev, err = ParseEvent([]byte(`{"id":"evt_2","type":"charge.refunded","data":{"charge":"ch_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "", ev.Kind())
}

func TestListAtRisk(t *testing.T) {
	db := newDisputeDBForTest(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Domain{ProjectID: 1, Name: "a.com", Status: models.DomainStatusActive}).Error)
	require.NoError(t, db.Create(&models.Domain{ProjectID: 1, Name: "b.com", Status: models.DomainStatusAtRisk}).Error)
	require.NoError(t, db.Create(&models.Domain{ProjectID: 1, Name: "c.com", Status: models.DomainStatusSuspended}).Error)

	domains, err := svc.ListAtRisk(ctx, 10, 0)
	require.NoError(t, err)
	names := []string{}
	for _, d := range domains {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"b.com", "c.com"}, names)
}
