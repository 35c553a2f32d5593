package payments

import (
	"time"

	"github.com/Bosco9119/wms-appi1/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment ledger service.
type Repository interface {
	CreatePayment(p *models.Payment) error
	FinalizeBill(localRef, billID, billURL string) error
	MarkInitiatingFailed(localRef string) error
	GetByBillID(billID string) (*models.Payment, error)
	UpdateStatusIfPending(billID string, update StatusUpdate) (bool, error)
	ListByCustomerEmail(email string, limit int) ([]models.Payment, error)
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

// FinalizeBill attaches the gateway-issued bill id to a provisional record
// and promotes it to pending. The status condition keeps a finalize from
// racing a concurrent cleanup.
func (r *gormRepository) FinalizeBill(localRef, billID, billURL string) error {
	tx := r.db.Model(&models.Payment{}).
		Where("local_ref = ? AND status = ?", localRef, models.PaymentStatusInitiating).
		Updates(map[string]interface{}{
			"bill_id":  billID,
			"bill_url": billURL,
			"status":   models.PaymentStatusPending,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) MarkInitiatingFailed(localRef string) error {
	return r.db.Model(&models.Payment{}).
		Where("local_ref = ? AND status = ?", localRef, models.PaymentStatusInitiating).
		Update("status", models.PaymentStatusFailed).Error
}

func (r *gormRepository) GetByBillID(billID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("bill_id = ? AND bill_id <> ''", billID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatusIfPending applies a callback outcome with a conditional write.
// It reports false when the record was no longer pending, so a duplicate or
// concurrent callback can never overwrite a terminal status.
func (r *gormRepository) UpdateStatusIfPending(billID string, update StatusUpdate) (bool, error) {
	tx := r.db.Model(&models.Payment{}).
		Where("bill_id = ? AND status = ?", billID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         update.Status,
			"transaction_id": update.TransactionID,
			"paid_at":        update.PaidAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListByCustomerEmail returns finalized records for an exact email match,
// newest first. Provisional rows without a bill id are internal and excluded.
func (r *gormRepository) ListByCustomerEmail(email string, limit int) ([]models.Payment, error) {
	var records []models.Payment
	err := r.db.
		Where("customer_email = ? AND bill_id <> ''", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
