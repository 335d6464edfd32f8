package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type RefundRepository interface {
	Create(refund *models.Refund) error
	FindByID(id string) (*models.Refund, error)
	FindByInstallmentID(installmentID string) (*models.Refund, error)
	ListByReceipt(receiptID string) ([]models.Refund, error)
	Save(refund *models.Refund) error
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

func (r *refundRepository) FindByID(id string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.First(&refund, "id = ?", id).Error
	return &refund, err
}

func (r *refundRepository) FindByInstallmentID(installmentID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.First(&refund, "installment_id = ?", installmentID).Error
	return &refund, err
}

func (r *refundRepository) ListByReceipt(receiptID string) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.
		Joins("JOIN installments ON installments.id = refunds.installment_id").
		Where("installments.receipt_id = ?", receiptID).
		Find(&refunds).Error
	return refunds, err
}

func (r *refundRepository) Save(refund *models.Refund) error {
	return r.db.Save(refund).Error
}
