package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Refund unit statuses
const (
	RefundUnitRequested = "requested"
	RefundUnitFunded    = "funded"
	RefundUnitDone      = "done"
	RefundUnitFailed    = "failed"
)

// Refund is one pending refund unit, created 1:1 for every installment that
// was paid-in before the refund request. Terminal at done or failed.
type Refund struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	InstallmentID   string `gorm:"type:uuid;uniqueIndex;not null"`
	Status          string `gorm:"not null;default:'requested'"`
	StripeRefundRef string `gorm:"index"`
	AvailableOn     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
