package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dispute statuses (mirror the processor's lifecycle)
const (
	DisputeNeedsResponse = "needs_response"
	DisputeUnderReview   = "under_review"
	DisputeWon           = "won"
	DisputeLost          = "lost"
)

// Dispute is a chargeback opened against a paid installment. At most one
// active (non-duplicate) dispute exists per installment; duplicates link via
// DuplicateOf. StripeDisputeRef is unique so redelivered creation events
// cannot insert twice.
type Dispute struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	InstallmentID    string `gorm:"type:uuid;index;not null"`
	StripeDisputeRef string `gorm:"uniqueIndex;not null"`
	Reason           string `gorm:"not null"`
	Status           string `gorm:"not null;default:'needs_response'"`
	EvidencesDueBy   time.Time
	DuplicateOf      *string `gorm:"type:uuid"`
	FeePaid          bool    `gorm:"default:false"`
	// Recoupment intent reference, recorded once the seller's dispute-fee
	// charge succeeds.
	RecoupmentIntentRef string

	Installment *Installment `gorm:"foreignKey:InstallmentID"`
	Evidences   []Evidence   `gorm:"many2many:dispute_evidences;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
