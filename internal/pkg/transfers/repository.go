package transfers

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/FlowPagesHQ/FlowPages/app/models"
)

// Repository provides DB operations used by the transfer service. Every
// status change is a single-row conditional UPDATE guarded by the current
// status, so concurrent confirm/poll/cancel calls cannot double-apply.
type Repository interface {
	Create(transfer *models.DomainTransfer) error
	GetByPublicID(publicID string) (*models.DomainTransfer, error)
	GetByRegistrarOrderID(orderID string) (*models.DomainTransfer, error)
	FindActiveByProjectAndDomain(projectID uint, domainName string) (*models.DomainTransfer, error)
	SetPaymentRef(id uint, paymentRef string) error
	TransitionStatus(id uint, from, to models.TransferStatus, updates map[string]interface{}) (bool, error)
	CompleteWithDomain(transfer *models.DomainTransfer, now time.Time) (*models.Domain, error)
	ListByProject(projectID uint, limit, offset int) ([]models.DomainTransfer, error)
	ListStale(olderThan time.Time) ([]models.DomainTransfer, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a transfer repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(transfer *models.DomainTransfer) error {
	return r.db.Create(transfer).Error
}

func (r *gormRepository) GetByPublicID(publicID string) (*models.DomainTransfer, error) {
	var transfer models.DomainTransfer
	if err := r.db.Where("public_id = ?", publicID).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *gormRepository) GetByRegistrarOrderID(orderID string) (*models.DomainTransfer, error) {
	var transfer models.DomainTransfer
	if err := r.db.Where("registrar_order_id = ?", orderID).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *gormRepository) FindActiveByProjectAndDomain(projectID uint, domainName string) (*models.DomainTransfer, error) {
	var transfer models.DomainTransfer
	err := r.db.
		Where("project_id = ? AND domain_name = ?", projectID, domainName).
		Where("status NOT IN ?", []models.TransferStatus{
			models.TransferStatusCompleted,
			models.TransferStatusFailed,
			models.TransferStatusCancelled,
		}).
		Order("id DESC").
		First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *gormRepository) SetPaymentRef(id uint, paymentRef string) error {
	return r.db.Model(&models.DomainTransfer{}).Where("id = ?", id).
		Update("payment_ref", paymentRef).Error
}

func (r *gormRepository) TransitionStatus(id uint, from, to models.TransferStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	tx := r.db.Model(&models.DomainTransfer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// CompleteWithDomain links the transfer to a new or matched Domain row and
// appends the audit event, all inside one transaction.
func (r *gormRepository) CompleteWithDomain(transfer *models.DomainTransfer, now time.Time) (*models.Domain, error) {
	var domain models.Domain
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", transfer.DomainName).First(&domain).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			domain = models.Domain{
				ProjectID: transfer.ProjectID,
				Name:      transfer.DomainName,
				Status:    models.DomainStatusActive,
			}
			err = tx.Create(&domain).Error
		case err == nil && domain.Status.CanTransitionTo(models.DomainStatusActive):
			err = tx.Model(&models.Domain{}).Where("id = ?", domain.ID).
				Update("status", models.DomainStatusActive).Error
			domain.Status = models.DomainStatusActive
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.DomainTransfer{}).
			Where("id = ? AND status IN ?", transfer.ID,
				[]models.TransferStatus{models.TransferStatusPending, models.TransferStatusProcessing}).
			Updates(map[string]interface{}{
				"status":       models.TransferStatusCompleted,
				"domain_id":    domain.ID,
				"completed_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("transfer is no longer completable")
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"transfer_id": transfer.PublicID,
			"order_id":    transfer.RegistrarOrderID,
		})
		return tx.Create(&models.DomainEvent{
			DomainID:     &domain.ID,
			ProjectID:    transfer.ProjectID,
			EventType:    models.DomainEventTransferCompleted,
			MetadataJSON: string(metadata),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

func (r *gormRepository) ListByProject(projectID uint, limit, offset int) ([]models.DomainTransfer, error) {
	var transfers []models.DomainTransfer
	err := r.db.Where("project_id = ?", projectID).
		Order("initiated_at DESC").Limit(limit).Offset(offset).
		Find(&transfers).Error
	return transfers, err
}

func (r *gormRepository) ListStale(olderThan time.Time) ([]models.DomainTransfer, error) {
	var transfers []models.DomainTransfer
	err := r.db.
		Where("status NOT IN ?", []models.TransferStatus{
			models.TransferStatusCompleted,
			models.TransferStatusFailed,
			models.TransferStatusCancelled,
		}).
		Where("initiated_at < ?", olderThan).
		Order("initiated_at ASC").
		Find(&transfers).Error
	return transfers, err
}
