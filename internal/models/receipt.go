package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt statuses
const (
	ReceiptCreated    = "created"
	ReceiptInProgress = "in-progress"
	ReceiptPaid       = "paid"
	ReceiptFailed     = "failed"
)

// Refund statuses on a receipt
const (
	RefundNotRequested = "not-requested"
	RefundRequested    = "requested"
	RefundInProgress   = "in-progress"
	RefundDone         = "done"
	RefundDenied       = "denied"
	RefundFailed       = "failed"
)

// Dispute aggregate statuses on a receipt
const (
	DisputeAggNone        = "none"
	DisputeAggOpen        = "open"
	DisputeAggUnderReview = "under_review"
	DisputeAggWon         = "won"
	DisputeAggLost        = "lost"
	DisputeAggMixed       = "mixed"
)

// Withdraw statuses on a receipt
const (
	WithdrawUnavailable = "unavailable"
	WithdrawAvailable   = "available"
	WithdrawInProgress  = "in-progress"
	WithdrawDone        = "done"
	WithdrawFailed      = "failed"
)

// Receipt is one buyer purchase split into installments. It is mutated only
// by the job processors and never hard-deleted.
type Receipt struct {
	ID                string  `gorm:"type:uuid;primaryKey"`
	SellerID          string  `gorm:"type:uuid;index;not null"`
	BuyerID           string  `gorm:"type:uuid;index;not null"`
	CustomerRef       string  `gorm:"index"` // processor customer id
	TotalAmount       float64 `gorm:"not null"`
	TaxAmount         float64 `gorm:"default:0"`
	TotalInstallments int     `gorm:"not null"`
	ChainID           int64   `gorm:"not null"`

	Status            string `gorm:"not null;default:'created'"`
	RefundStatus      string `gorm:"not null;default:'not-requested'"`
	RefundAvailableOn *time.Time
	DisputeStatus     string `gorm:"not null;default:'none'"`
	WithdrawStatus    string `gorm:"not null;default:'unavailable'"`

	PledgeTxHash   string
	RefundTxHash   string
	WithdrawTxHash string
	NFTID          *string

	Installments []Installment `gorm:"foreignKey:ReceiptID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
