package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Installment statuses
const (
	InstallmentCreated          = "created"
	InstallmentPaymentScheduled = "payment_scheduled"
	InstallmentPaidIn           = "paid-in"
	InstallmentPaidOut          = "paid-out"
	InstallmentFailed           = "failed"
	InstallmentCanceled         = "canceled"
)

// Installment is one scheduled charge of a Receipt. Net = Amount - Fee
// always holds; Idx is unique per receipt. A canceled installment never
// transitions further.
type Installment struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Idx         int       `gorm:"not null;uniqueIndex:idx_receipt_position"`
	ReceiptID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_position;index"`
	ScheduledOn time.Time `gorm:"not null"`
	Amount      float64   `gorm:"not null"`
	Fee         float64   `gorm:"not null"`
	Net         float64   `gorm:"not null"`

	Status            string `gorm:"not null;default:'created'"`
	PaymentIntentRef  string `gorm:"index"`
	FailedTimes       int    `gorm:"default:0"`
	LastFailureAt     *time.Time
	LastFailureReason string

	TaxTransactionRef string
	TaxTransferRef    string
	ConfirmTxHash     string
	PayoutRef         string
	ReceiptURL        string

	Receipt *Receipt `gorm:"foreignKey:ReceiptID"`
	Refund  *Refund  `gorm:"foreignKey:InstallmentID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
