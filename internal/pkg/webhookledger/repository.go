package webhookledger

import (
	"time"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the ledger service. The claim
// and retry predicates live in SQL so concurrent callers race on a single
// conditional UPDATE instead of a read-modify-write.
type Repository interface {
	CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	ClaimEvent(id uint, now time.Time) (bool, error)
	MarkCompleted(id uint, eventType, parsedPayload string, now time.Time) error
	MarkFailed(id uint, lastError string, retryCount int, nextRetryAt *time.Time) error
	ResetStuck(olderThan time.Time, nextRetryAt time.Time) (int64, error)
	DeleteTerminalOlderThan(cutoff time.Time) (int64, error)
	RequeueForRetry(id uint, now time.Time) (bool, error)
	GetByID(id uint) (*models.WebhookEvent, error)
	List(status string, limit, offset int) ([]models.WebhookEvent, error)
	ListTerminallyFailed(limit, offset int) ([]models.WebhookEvent, error)
	ListDueRetries(now time.Time, limit int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("source = ? AND idempotency_key = ?", event.Source, event.IdempotencyKey).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// ClaimEvent grants processing ownership to exactly one caller. Retrying and
// failed events are only claimable once their backoff has elapsed; terminally
// failed events (nil next_retry_at) never match.
func (r *gormRepository) ClaimEvent(id uint, now time.Time) (bool, error) {
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Where("status = ? OR (status IN ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			models.WebhookStatusPending,
			[]models.WebhookEventStatus{models.WebhookStatusRetrying, models.WebhookStatusFailed},
			now,
		).
		Updates(map[string]interface{}{
			"status":     models.WebhookStatusProcessing,
			"updated_at": now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkCompleted(id uint, eventType, parsedPayload string, now time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusProcessing).
		Updates(map[string]interface{}{
			"status":         models.WebhookStatusCompleted,
			"processed_at":   &now,
			"event_type":     eventType,
			"parsed_payload": parsedPayload,
			"last_error":     "",
		}).Error
}

func (r *gormRepository) MarkFailed(id uint, lastError string, retryCount int, nextRetryAt *time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusFailed,
			"last_error":    lastError,
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
		}).Error
}

// ResetStuck recovers events claimed by a worker that never completed.
func (r *gormRepository) ResetStuck(olderThan time.Time, nextRetryAt time.Time) (int64, error) {
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("status = ? AND updated_at < ?", models.WebhookStatusProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusRetrying,
			"last_error":    "recovered by stuck-event reaper",
			"next_retry_at": &nextRetryAt,
		})
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) DeleteTerminalOlderThan(cutoff time.Time) (int64, error) {
	tx := r.db.
		Where("status IN ? AND received_at < ?",
			[]models.WebhookEventStatus{models.WebhookStatusCompleted, models.WebhookStatusFailed}, cutoff).
		Where("status = ? OR next_retry_at IS NULL", models.WebhookStatusCompleted).
		Delete(&models.WebhookEvent{})
	return tx.RowsAffected, tx.Error
}

// RequeueForRetry is the admin reprocess primitive: it puts a failed event
// back in line regardless of its backoff, but refuses to touch events that
// are completed or currently owned by a processor.
func (r *gormRepository) RequeueForRetry(id uint, now time.Time) (bool, error) {
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status IN ?", id,
			[]models.WebhookEventStatus{models.WebhookStatusFailed, models.WebhookStatusRetrying}).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusRetrying,
			"next_retry_at": &now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) List(status string, limit, offset int) ([]models.WebhookEvent, error) {
	q := r.db.Model(&models.WebhookEvent{}).Order("received_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var events []models.WebhookEvent
	err := q.Find(&events).Error
	return events, err
}

func (r *gormRepository) ListTerminallyFailed(limit, offset int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("status = ? AND next_retry_at IS NULL", models.WebhookStatusFailed).
		Order("received_at DESC").Limit(limit).Offset(offset).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) ListDueRetries(now time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("status IN ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			[]models.WebhookEventStatus{models.WebhookStatusRetrying, models.WebhookStatusFailed}, now).
		Order("next_retry_at ASC").Limit(limit).
		Find(&events).Error
	return events, err
}
