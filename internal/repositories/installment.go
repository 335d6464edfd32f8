package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type InstallmentRepository interface {
	Create(installment *models.Installment) error
	FindByID(id string) (*models.Installment, error)
	// FindByIDWithReceipt loads the installment plus its receipt and the
	// receipt's full installment set, ordered by position.
	FindByIDWithReceipt(id string) (*models.Installment, error)
	FindByPaymentIntentRef(ref string) (*models.Installment, error)
	ListByReceipt(receiptID string) ([]models.Installment, error)
	Save(installment *models.Installment) error
}

type installmentRepository struct {
	db *gorm.DB
}

func NewInstallmentRepository(db *gorm.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) Create(installment *models.Installment) error {
	return r.db.Create(installment).Error
}

func (r *installmentRepository) FindByID(id string) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.First(&installment, "id = ?", id).Error
	return &installment, err
}

func (r *installmentRepository) FindByIDWithReceipt(id string) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.Preload("Receipt").Preload("Receipt.Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("idx")
	}).Preload("Receipt.Installments.Refund").First(&installment, "id = ?", id).Error
	return &installment, err
}

func (r *installmentRepository) FindByPaymentIntentRef(ref string) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.First(&installment, "payment_intent_ref = ?", ref).Error
	return &installment, err
}

func (r *installmentRepository) ListByReceipt(receiptID string) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.Where("receipt_id = ?", receiptID).Order("idx").Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) Save(installment *models.Installment) error {
	return r.db.Save(installment).Error
}
