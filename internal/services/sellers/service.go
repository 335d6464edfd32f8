// Package sellers implements the seller settlement-setup operations: wiring
// the off-ramp (liquidation address) the treasury pays out through, and
// exposing the on-ramp and linked-account data from the banking provider.
package sellers

import (
	"context"
	"errors"
	"fmt"

	"splitpay/internal/gateways/banking"
	"splitpay/internal/models"
)

var (
	ErrSellerNotFound      = errors.New("seller not found")
	ErrBankingNotOnboarded = errors.New("seller has not completed banking onboarding")
)

// OffRampParams selects where the provider liquidates the seller's settled
// funds: the destination rail and currency, and the linked bank account.
type OffRampParams struct {
	PaymentRail       string `json:"payment_rail"`
	Currency          string `json:"currency"`
	ExternalAccountID string `json:"external_account_id"`
}

// Service handles seller setup against the banking provider. paymentRail and
// currency fix the source side of every liquidation address: the chain the
// treasury releases on and the stablecoin it settles in.
type Service struct {
	users       UserStore
	banking     BankingClient
	paymentRail string
	currency    string
}

func NewService(users UserStore, bankingClient BankingClient, paymentRail, currency string) *Service {
	return &Service{
		users:       users,
		banking:     bankingClient,
		paymentRail: paymentRail,
		currency:    currency,
	}
}

func (s *Service) onboardedSeller(sellerID string) (*models.User, error) {
	seller, err := s.users.FindByID(sellerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSellerNotFound, sellerID)
	}
	if seller.BankingID == "" || !seller.BankingOnboarded {
		return nil, ErrBankingNotOnboarded
	}
	return seller, nil
}

// SetupOffRamp resolves the seller's liquidation address for the requested
// destination, creating one at the provider when none is active yet, and
// records the resulting rail and on-chain address on the seller. Treasury
// releases for this seller land on that address from then on.
func (s *Service) SetupOffRamp(ctx context.Context, sellerID string, p OffRampParams) (*models.User, error) {
	seller, err := s.onboardedSeller(sellerID)
	if err != nil {
		return nil, err
	}

	address, err := s.banking.FindOrCreateLiquidationAddress(ctx, seller.BankingID, banking.LiquidationAddressCreateInput{
		Chain:                  s.paymentRail,
		Currency:               s.currency,
		ExternalAccountID:      p.ExternalAccountID,
		DestinationCurrency:    p.Currency,
		DestinationPaymentRail: p.PaymentRail,
	})
	if err != nil {
		return nil, err
	}

	seller.LiquidationRail = address.Chain
	seller.LiquidationAddress = address.Address
	if err := s.users.Save(seller); err != nil {
		return nil, fmt.Errorf("save seller liquidation config: %w", err)
	}
	return seller, nil
}

// ResetOffRamp clears the seller's liquidation config. Until a new off-ramp
// is set up, treasury releases for the seller stay queued on the missing
// liquidation address.
func (s *Service) ResetOffRamp(sellerID string) (*models.User, error) {
	seller, err := s.users.FindByID(sellerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSellerNotFound, sellerID)
	}
	seller.LiquidationRail = ""
	seller.LiquidationAddress = ""
	if err := s.users.Save(seller); err != nil {
		return nil, fmt.Errorf("reset seller liquidation config: %w", err)
	}
	return seller, nil
}

// ExternalAccounts lists the bank accounts the seller has linked at the
// provider, the candidates for an off-ramp destination.
func (s *Service) ExternalAccounts(ctx context.Context, sellerID string) ([]banking.ExternalAccount, error) {
	seller, err := s.onboardedSeller(sellerID)
	if err != nil {
		return nil, err
	}
	return s.banking.ListExternalAccounts(ctx, seller.BankingID)
}

// OnRampInstructions returns the seller's activated virtual accounts with
// their wire-in deposit instructions.
func (s *Service) OnRampInstructions(ctx context.Context, sellerID string) ([]banking.VirtualAccount, error) {
	seller, err := s.onboardedSeller(sellerID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.banking.ListVirtualAccounts(ctx, seller.BankingID)
	if err != nil {
		return nil, err
	}
	activated := make([]banking.VirtualAccount, 0, len(accounts))
	for _, account := range accounts {
		if account.Status == "activated" {
			activated = append(activated, account)
		}
	}
	return activated, nil
}
