package sellers

import (
	"context"

	"splitpay/internal/gateways/banking"
	"splitpay/internal/models"
)

// The service consumes narrow views of the user repository and the banking
// client; internal/repositories and internal/gateways/banking satisfy them.

type UserStore interface {
	FindByID(id string) (*models.User, error)
	Save(user *models.User) error
}

// BankingClient is the slice of the banking provider API the setup
// operations use.
type BankingClient interface {
	FindOrCreateLiquidationAddress(ctx context.Context, customerID string, in banking.LiquidationAddressCreateInput) (*banking.LiquidationAddress, error)
	ListVirtualAccounts(ctx context.Context, customerID string) ([]banking.VirtualAccount, error)
	ListExternalAccounts(ctx context.Context, customerID string) ([]banking.ExternalAccount, error)
}
