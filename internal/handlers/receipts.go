package handlers

import (
	"errors"

	"splitpay/internal/middleware"
	"splitpay/internal/services/receipts"
	"splitpay/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// ReceiptsHandler exposes the seller/buyer receipt operations.
type ReceiptsHandler struct {
	receipts *receipts.Service
}

func NewReceiptsHandler(receiptsService *receipts.Service) *ReceiptsHandler {
	return &ReceiptsHandler{receipts: receiptsService}
}

func receiptError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, receipts.ErrReceiptNotFound):
		return utils.NotFound(c, "receipt not found")
	case errors.Is(err, receipts.ErrRefundNotAllowed),
		errors.Is(err, receipts.ErrWithdrawUnavailable),
		errors.Is(err, receipts.ErrNoOpenDisputes):
		return utils.Conflict(c, err.Error())
	case errors.Is(err, receipts.ErrNothingToRefund),
		errors.Is(err, receipts.ErrInvalidPaymentMethod):
		return utils.UnprocessableEntity(c, err.Error())
	default:
		return utils.InternalError(c, err.Error())
	}
}

// List returns the caller's receipts, sellers and buyers each seeing their
// own side.
func (h *ReceiptsHandler) List(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var list interface{}
	var err error
	if claims.Role == "buyer" {
		list, err = h.receipts.ListForBuyer(claims.UserID)
	} else {
		list, err = h.receipts.ListForSeller(claims.UserID)
	}
	if err != nil {
		return utils.InternalError(c, "failed to list receipts")
	}
	return utils.Success(c, fiber.Map{"receipts": list})
}

// Get returns one receipt with its installments and refunds.
func (h *ReceiptsHandler) Get(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	receipt, err := h.receipts.Get(c.Params("id"), claims.UserID)
	if err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"receipt": receipt})
}

// StartRefund begins the seller-approved refund flow.
func (h *ReceiptsHandler) StartRefund(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.receipts.StartRefund(c.UserContext(), c.Params("id"), claims.UserID); err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"refund_status": "in-progress"})
}

// RequestRefund records the buyer's refund request on the receipt.
func (h *ReceiptsHandler) RequestRefund(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.receipts.RequestRefund(c.Params("id"), claims.UserID); err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"refund_status": "requested"})
}

// DenyRefund rejects a buyer's pending refund request.
func (h *ReceiptsHandler) DenyRefund(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.receipts.DenyRefund(c.Params("id"), claims.UserID); err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"refund_status": "denied"})
}

// Withdraw asks for the on-chain escrow release of a settled receipt.
func (h *ReceiptsHandler) Withdraw(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.receipts.Withdraw(c.UserContext(), c.Params("id"), claims.UserID); err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"withdraw_status": "in-progress"})
}

// SubmitEvidences submits the collected evidence bundle on every open dispute
// of the receipt.
func (h *ReceiptsHandler) SubmitEvidences(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input struct {
		AcceptLoss bool `json:"accept_loss"`
	}
	if err := c.BodyParser(&input); err != nil && len(c.Body()) > 0 {
		return utils.BadRequest(c, "invalid request format")
	}
	err := h.receipts.SubmitEvidences(c.UserContext(), c.Params("id"), claims.UserID, input.AcceptLoss)
	if err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"submitted": true})
}

// ResetEvidences blanks the evidence values collected so far.
func (h *ReceiptsHandler) ResetEvidences(c *fiber.Ctx) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.receipts.ResetEvidences(c.Params("id"), claims.UserID); err != nil {
		return receiptError(c, err)
	}
	return utils.Success(c, fiber.Map{"reset": true})
}
