package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type DisputeRepository interface {
	Create(dispute *models.Dispute) error
	FindByID(id string) (*models.Dispute, error)
	FindByStripeRef(ref string) (*models.Dispute, error)
	// ListByReceipt returns every dispute on any of the receipt's
	// installments, evidences preloaded.
	ListByReceipt(receiptID string) ([]models.Dispute, error)
	ListByInstallment(installmentID string) ([]models.Dispute, error)
	Save(dispute *models.Dispute) error
	LinkEvidences(dispute *models.Dispute, evidences []models.Evidence) error
}

type disputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(dispute *models.Dispute) error {
	return r.db.Create(dispute).Error
}

func (r *disputeRepository) FindByID(id string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.Preload("Evidences").Preload("Installment").First(&dispute, "id = ?", id).Error
	return &dispute, err
}

func (r *disputeRepository) FindByStripeRef(ref string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.First(&dispute, "stripe_dispute_ref = ?", ref).Error
	return &dispute, err
}

func (r *disputeRepository) ListByReceipt(receiptID string) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.Preload("Evidences").
		Joins("JOIN installments ON installments.id = disputes.installment_id").
		Where("installments.receipt_id = ?", receiptID).
		Find(&disputes).Error
	return disputes, err
}

func (r *disputeRepository) ListByInstallment(installmentID string) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.Where("installment_id = ?", installmentID).Find(&disputes).Error
	return disputes, err
}

func (r *disputeRepository) Save(dispute *models.Dispute) error {
	return r.db.Save(dispute).Error
}

func (r *disputeRepository) LinkEvidences(dispute *models.Dispute, evidences []models.Evidence) error {
	return r.db.Model(dispute).Association("Evidences").Append(evidences)
}
