package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

// User is a platform participant. Sellers carry processor and banking
// references used by settlement; buyers carry the embedded wallet address
// their pledges originate from.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Role      string `gorm:"not null;default:'seller'"`
	AuthRef   string `gorm:"uniqueIndex"` // identity provider subject

	// Fiat processor (connected account)
	StripeID        string `gorm:"index"`
	StripeOnboarded bool   `gorm:"default:false"`
	PaymentMethodID string // seller's saved card, charged for recoupments

	// Crypto banking provider
	BankingID        string `gorm:"index"`
	BankingOnboarded bool   `gorm:"default:false"`
	// Liquidation config: where settled funds land on-chain.
	LiquidationRail    string
	LiquidationAddress string

	WalletAddress string // buyer embedded wallet

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
