package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(receipt *models.Receipt) error
	FindByID(id string) (*models.Receipt, error)
	FindByIDWithInstallments(id string) (*models.Receipt, error)
	FindByIDWithRefunds(id string) (*models.Receipt, error)
	ListBySeller(sellerID string) ([]models.Receipt, error)
	ListByBuyer(buyerID string) ([]models.Receipt, error)
	Save(receipt *models.Receipt) error
	Updates(id string, fields map[string]interface{}) error
	// MarkWithdrawAvailable flips withdraw_status from unavailable to
	// available. The guard makes the transition happen at most once even
	// when two confirm jobs race.
	MarkWithdrawAvailable(id string) (bool, error)
}

type receiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Create(receipt *models.Receipt) error {
	return r.db.Create(receipt).Error
}

func (r *receiptRepository) FindByID(id string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.First(&receipt, "id = ?", id).Error
	return &receipt, err
}

func (r *receiptRepository) FindByIDWithInstallments(id string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("idx")
	}).First(&receipt, "id = ?", id).Error
	return &receipt, err
}

func (r *receiptRepository) FindByIDWithRefunds(id string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("idx")
	}).Preload("Installments.Refund").First(&receipt, "id = ?", id).Error
	return &receipt, err
}

func (r *receiptRepository) ListBySeller(sellerID string) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.Where("seller_id = ?", sellerID).Order("created_at desc").Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) ListByBuyer(buyerID string) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.Where("buyer_id = ?", buyerID).Order("created_at desc").Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) Save(receipt *models.Receipt) error {
	return r.db.Save(receipt).Error
}

func (r *receiptRepository) Updates(id string, fields map[string]interface{}) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(fields).Error
}

func (r *receiptRepository) MarkWithdrawAvailable(id string) (bool, error) {
	res := r.db.Model(&models.Receipt{}).
		Where("id = ? AND withdraw_status = ?", id, models.WithdrawUnavailable).
		Update("withdraw_status", models.WithdrawAvailable)
	return res.RowsAffected > 0, res.Error
}
