package handlers

import (
	"errors"

	"splitpay/internal/gateways/banking"
	"splitpay/internal/middleware"
	"splitpay/internal/services/sellers"
	"splitpay/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// SellersHandler exposes the seller setup operations: off-ramp management and
// the provider-backed on-ramp and linked-account listings.
type SellersHandler struct {
	sellers *sellers.Service
}

func NewSellersHandler(sellersService *sellers.Service) *SellersHandler {
	return &SellersHandler{sellers: sellersService}
}

func sellerError(c *fiber.Ctx, err error) error {
	var apiErr *banking.APIError
	switch {
	case errors.Is(err, sellers.ErrSellerNotFound):
		return utils.NotFound(c, "seller not found")
	case errors.Is(err, sellers.ErrBankingNotOnboarded):
		return utils.Conflict(c, err.Error())
	case errors.As(err, &apiErr):
		// Provider rejections come back as 424 so the client can tell a
		// banking-side failure from our own.
		return utils.FailedDependency(c, apiErr.Error())
	default:
		return utils.InternalError(c, err.Error())
	}
}

// SetupOffRamp points the seller's settlement off-ramp at a linked bank
// account.
func (h *SellersHandler) SetupOffRamp(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var params sellers.OffRampParams
	if err := c.BodyParser(&params); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if params.PaymentRail == "" || params.Currency == "" || params.ExternalAccountID == "" {
		return utils.BadRequest(c, "payment_rail, currency and external_account_id are required")
	}
	seller, err := h.sellers.SetupOffRamp(c.UserContext(), claims.UserID, params)
	if err != nil {
		return sellerError(c, err)
	}
	return utils.Success(c, fiber.Map{"seller": seller})
}

// ResetOffRamp clears the seller's off-ramp configuration.
func (h *SellersHandler) ResetOffRamp(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	seller, err := h.sellers.ResetOffRamp(claims.UserID)
	if err != nil {
		return sellerError(c, err)
	}
	return utils.Success(c, fiber.Map{"seller": seller})
}

// ExternalAccounts lists the seller's linked bank accounts.
func (h *SellersHandler) ExternalAccounts(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	accounts, err := h.sellers.ExternalAccounts(c.UserContext(), claims.UserID)
	if err != nil {
		return sellerError(c, err)
	}
	return utils.Success(c, fiber.Map{"external_accounts": accounts})
}

// OnRamp returns the deposit instructions of the seller's activated virtual
// accounts.
func (h *SellersHandler) OnRamp(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	accounts, err := h.sellers.OnRampInstructions(c.UserContext(), claims.UserID)
	if err != nil {
		return sellerError(c, err)
	}
	return utils.Success(c, fiber.Map{"virtual_accounts": accounts})
}
