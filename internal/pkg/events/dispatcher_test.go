package events

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
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/disputes"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/transfers"
)

func newDispatcherEnv(t *testing.T) (*Dispatcher, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Domain{}, &models.DomainEvent{}, &models.Invoice{},
		&models.ProcessedEvent{}, &models.DomainTransfer{},
	))

	disputeSvc := disputes.NewService(db, nil)
	transferSvc := transfers.NewService(transfers.NewRepository(db), nil, nil, nil, nil)
	return NewDispatcher(disputeSvc, transferSvc), db
}

func TestDispatchPaymentDisputeEvent(t *testing.T) {
	d, db := newDispatcherEnv(t)

	domain := models.Domain{ProjectID: 1, Name: "example.com", Status: models.DomainStatusActive}
	require.NoError(t, db.Create(&domain).Error)
	require.NoError(t, db.Create(&models.Invoice{
		ProjectID: 1, DomainID: &domain.ID, ChargeRef: "ch_1",
		Amount: 1450, Currency: "USD",
	}).Error)

	event := &models.WebhookEvent{
		Source: models.WebhookSourcePayment,
		Body:   `{"id":"evt_1","type":"charge.dispute.created","data":{"dispute_id":"dp_1","charge":"ch_1","status":"needs_response","amount":1450,"currency":"USD"}}`,
	}
	eventType, parsed, err := d.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "charge.dispute.created", eventType)
	assert.Contains(t, parsed, "ch_1")

	var got models.Domain
	require.NoError(t, db.First(&got, domain.ID).Error)
	assert.Equal(t, models.DomainStatusAtRisk, got.Status)
}

func TestDispatchPaymentNonDisputeEventIsAcknowledged(t *testing.T) {
	d, db := newDispatcherEnv(t)

	event := &models.WebhookEvent{
		Source: models.WebhookSourcePayment,
		Body:   `{"id":"evt_2","type":"payment_intent.succeeded","data":{}}`,
	}
	eventType, _, err := d.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", eventType)

	var count int64
	require.NoError(t, db.Model(&models.DomainEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDispatchRegistrarTransferUpdate(t *testing.T) {
	d, db := newDispatcherEnv(t)

	transfer := models.DomainTransfer{
		PublicID: "pub-1", ProjectID: 1, DomainName: "example.com", TLD: "com",
		RegistrarOrderID: "ord_9", Status: models.TransferStatusPending,
		PriceAmount: 1450, PriceCurrency: "USD",
	}
	require.NoError(t, db.Create(&transfer).Error)

	event := &models.WebhookEvent{
		Source: models.WebhookSourceRegistrar,
		Body:   `{"event":"transfer.updated","order_id":"ord_9","status":"in_progress"}`,
	}
	eventType, _, err := d.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "transfer.updated", eventType)

	var got models.DomainTransfer
	require.NoError(t, db.First(&got, transfer.ID).Error)
	assert.Equal(t, models.TransferStatusProcessing, got.Status)
	assert.Equal(t, "in_progress", got.RawProviderStatus)
}

func TestDispatchRegistrarUnknownOrderFailsForRetry(t *testing.T) {
	d, _ := newDispatcherEnv(t)

	event := &models.WebhookEvent{
		Source: models.WebhookSourceRegistrar,
		Body:   `{"event":"transfer.updated","order_id":"no_such_order","status":"in_progress"}`,
	}
	_, _, err := d.Dispatch(context.Background(), event)
	assert.Error(t, err)
}

func TestDispatchRegistrarNonTransferEventIsAcknowledged(t *testing.T) {
	d, _ := newDispatcherEnv(t)

	event := &models.WebhookEvent{
		Source: models.WebhookSourceRegistrar,
		Body:   `{"event":"domain.renewed","order_id":"","status":"ok"}`,
	}
	eventType, _, err := d.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "domain.renewed", eventType)
}
