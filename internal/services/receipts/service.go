// Package receipts holds the seller/buyer-facing receipt operations that sit
// in front of the settlement queues: checkout splitting, refund initiation,
// withdrawal requests and dispute evidence submission.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/money"
	"splitpay/internal/processors"
	"splitpay/internal/queue"
)

var (
	ErrReceiptNotFound      = errors.New("receipt not found")
	ErrRefundNotAllowed     = errors.New("refund not allowed in the current state")
	ErrNothingToRefund      = errors.New("nothing to refund")
	ErrInvalidPaymentMethod = errors.New("missing or invalid payment method")
	ErrWithdrawUnavailable  = errors.New("withdrawal is not available")
	ErrNoOpenDisputes       = errors.New("receipt has no open disputes")
)

// acceptLossMarker is the catch-all evidence value submitted when the seller
// concedes the dispute instead of contesting it.
const acceptLossMarker = "losing_evidence"

type Service struct {
	receipts     ReceiptStore
	installments InstallmentStore
	refunds      RefundStore
	disputes     DisputeStore
	evidences    EvidenceStore
	users        UserStore
	gateway      PaymentGateway
	queues       processors.Enqueuer
	chainID      int64
	homeCountry  string
	extraRate    float64
	now          func() time.Time
}

func NewService(
	receipts ReceiptStore,
	installments InstallmentStore,
	refunds RefundStore,
	disputes DisputeStore,
	evidences EvidenceStore,
	users UserStore,
	gateway PaymentGateway,
	queues processors.Enqueuer,
	chainID int64,
	homeCountry string,
	extraRate float64,
) *Service {
	if gateway == nil || queues == nil {
		panic("receipts service requires a gateway and a queue registry")
	}
	return &Service{
		receipts:     receipts,
		installments: installments,
		refunds:      refunds,
		disputes:     disputes,
		evidences:    evidences,
		users:        users,
		gateway:      gateway,
		queues:       queues,
		chainID:      chainID,
		homeCountry:  homeCountry,
		extraRate:    extraRate,
		now:          time.Now,
	}
}

func (s *Service) extraRateFor(method *fiat.PaymentMethod) float64 {
	if method.IsCard && method.CardCountry != "" && !strings.EqualFold(method.CardCountry, s.homeCountry) {
		return s.extraRate
	}
	return 0
}

// SetupParams is the buyer checkout captured from a succeeded setup intent.
type SetupParams struct {
	SellerID           string
	BuyerID            string
	CustomerRef        string
	SetupIntentRef     string
	PaymentMethodID    string
	BuyerWalletAddress string
	Amount             float64
	Installments       int
	Interval           time.Duration
	ProcessTaxes       bool
}

// CreateFromSetup turns a completed buyer setup into a receipt: computes the
// tax on top of the purchase amount, splits the total into installment rows,
// schedules one createPaymentIntent job per installment at its interval
// offset, and opens the on-chain escrow pledge for the net (pre-tax) total.
func (s *Service) CreateFromSetup(ctx context.Context, params SetupParams) (*models.Receipt, error) {
	if params.Installments < 1 {
		return nil, fmt.Errorf("invalid installment count %d", params.Installments)
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, params.CustomerRef, params.PaymentMethodID); err != nil {
		return nil, fmt.Errorf("set default payment method: %w", err)
	}
	method, err := s.gateway.RetrievePaymentMethod(ctx, params.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment method: %w", err)
	}
	extraRate := s.extraRateFor(method)

	var taxAmount float64
	if params.ProcessTaxes {
		calculation, err := s.gateway.CreateTaxCalculation(ctx, fiat.TaxCalculationParams{
			CustomerID:  params.CustomerRef,
			Reference:   params.SetupIntentRef,
			AmountCents: money.ToCents(params.Amount),
		})
		if err != nil {
			return nil, fmt.Errorf("calculate taxes: %w", err)
		}
		taxAmount = money.FromCents(calculation.TaxAmountExclusive)
	}

	totalAmount := money.RoundToCents(params.Amount) + taxAmount
	receipt := &models.Receipt{
		SellerID:          params.SellerID,
		BuyerID:           params.BuyerID,
		CustomerRef:       params.CustomerRef,
		TotalAmount:       totalAmount,
		TaxAmount:         taxAmount,
		TotalInstallments: params.Installments,
		ChainID:           s.chainID,
		Status:            models.ReceiptCreated,
	}
	if err := s.receipts.Create(receipt); err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	now := s.now()
	shares := money.SplitCents(money.ToCents(totalAmount), params.Installments)
	var pledgeAmount float64
	for idx, shareCents := range shares {
		amount := money.FromCents(shareCents)
		fee := money.Fee(amount, extraRate)
		net := amount - fee
		delay := time.Duration(idx) * params.Interval
		installment := &models.Installment{
			Idx:         idx,
			ReceiptID:   receipt.ID,
			ScheduledOn: now.Add(delay),
			Amount:      amount,
			Fee:         fee,
			Net:         net,
			Status:      models.InstallmentCreated,
		}
		if err := s.installments.Create(installment); err != nil {
			return nil, fmt.Errorf("create installment %d: %w", idx, err)
		}
		err = s.queues.Enqueue(ctx, queue.Installments, processors.JobCreatePaymentIntent,
			processors.InstallmentPayload{InstallmentID: installment.ID}, delay)
		if err != nil {
			return nil, fmt.Errorf("schedule installment %d: %w", idx, err)
		}
		pledgeAmount += net
	}

	// The escrow holds the seller's net, taxes excluded: they are transferred
	// to the platform as each installment settles.
	err = s.queues.Enqueue(ctx, queue.Treasury, processors.JobPledge, processors.PledgePayload{
		UserID:             params.SellerID,
		ReceiptID:          receipt.ID,
		BuyerWalletAddress: params.BuyerWalletAddress,
		AmountCents:        money.ToCents(money.RoundToCents(pledgeAmount - taxAmount)),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("schedule pledge: %w", err)
	}
	return receipt, nil
}

// StartRefund begins a seller-approved refund. Installments that never
// reached a succeeded charge are canceled so the processor cannot settle them
// later; the already-paid ones are summed and the seller's saved card is
// charged the grossed-up recoupment that will fund the buyer refunds.
func (s *Service) StartRefund(ctx context.Context, receiptID, sellerID string) error {
	receipt, err := s.receipts.FindByIDWithInstallments(receiptID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.SellerID != sellerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.RefundStatus != models.RefundNotRequested && receipt.RefundStatus != models.RefundRequested {
		return fmt.Errorf("%w: refund_status=%s", ErrRefundNotAllowed, receipt.RefundStatus)
	}
	seller, err := s.users.FindByID(sellerID)
	if err != nil {
		return fmt.Errorf("find seller %s: %w", sellerID, err)
	}
	method, err := s.gateway.RetrievePaymentMethod(ctx, seller.PaymentMethodID)
	if err != nil || method.CustomerID == "" {
		return ErrInvalidPaymentMethod
	}

	// The installment status column may lag the processor, so each intent is
	// checked at the source; everything not yet succeeded is canceled before
	// any money moves.
	var paidAmount float64
	var toCancel []*models.Installment
	for i := range receipt.Installments {
		installment := &receipt.Installments[i]
		if installment.PaymentIntentRef == "" {
			toCancel = append(toCancel, installment)
			continue
		}
		intent, err := s.gateway.RetrievePaymentIntent(ctx, installment.PaymentIntentRef)
		if err != nil {
			return fmt.Errorf("retrieve payment intent %s: %w", installment.PaymentIntentRef, err)
		}
		if intent.Status != fiat.IntentSucceeded {
			if _, err := s.gateway.CancelPaymentIntent(ctx, installment.PaymentIntentRef, "requested_by_customer"); err != nil {
				return fmt.Errorf("cancel payment intent %s: %w", installment.PaymentIntentRef, err)
			}
			toCancel = append(toCancel, installment)
			continue
		}
		paidAmount += installment.Amount
		err = s.refunds.Create(&models.Refund{
			InstallmentID: installment.ID,
			Status:        models.RefundUnitRequested,
		})
		if err != nil {
			return fmt.Errorf("create refund row for installment %s: %w", installment.ID, err)
		}
	}
	for _, installment := range toCancel {
		installment.Status = models.InstallmentCanceled
		if err := s.installments.Save(installment); err != nil {
			return fmt.Errorf("cancel installment %s: %w", installment.ID, err)
		}
	}

	if paidAmount <= 0 {
		return ErrNothingToRefund
	}
	recoupmentCents := int64(math.Floor(money.ReverseFee(paidAmount, s.extraRateFor(method)) * 100))
	_, err = s.gateway.CreateRecoupmentCharge(ctx, fiat.RecoupmentChargeParams{
		AmountCents:     recoupmentCents,
		CustomerID:      method.CustomerID,
		PaymentMethodID: method.ID,
		Description:     fmt.Sprintf("Recoupment charge for refund of the receipt %s", receipt.ID),
		Source:          fiat.SourceRefund,
		ReceiptID:       receipt.ID,
	})
	if err != nil {
		return fmt.Errorf("create recoupment charge: %w", err)
	}
	return s.receipts.Updates(receipt.ID, map[string]interface{}{
		"refund_status": models.RefundInProgress,
	})
}

// RequestRefund marks the buyer's wish to be refunded; the seller decides.
func (s *Service) RequestRefund(receiptID, buyerID string) error {
	receipt, err := s.receipts.FindByID(receiptID)
	if err != nil || receipt.BuyerID != buyerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	return s.receipts.Updates(receipt.ID, map[string]interface{}{
		"refund_status": models.RefundRequested,
	})
}

// DenyRefund rejects a buyer's pending refund request.
func (s *Service) DenyRefund(receiptID, sellerID string) error {
	receipt, err := s.receipts.FindByID(receiptID)
	if err != nil || receipt.SellerID != sellerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.RefundStatus != models.RefundRequested {
		return fmt.Errorf("%w: refund_status=%s", ErrRefundNotAllowed, receipt.RefundStatus)
	}
	return s.receipts.Updates(receipt.ID, map[string]interface{}{
		"refund_status": models.RefundDenied,
	})
}

// Withdraw hands a fully settled receipt to the treasury queue for the
// on-chain escrow release.
func (s *Service) Withdraw(ctx context.Context, receiptID, sellerID string) error {
	receipt, err := s.receipts.FindByID(receiptID)
	if err != nil || receipt.SellerID != sellerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.WithdrawStatus != models.WithdrawAvailable {
		return fmt.Errorf("%w: withdraw_status=%s", ErrWithdrawUnavailable, receipt.WithdrawStatus)
	}
	err = s.queues.Enqueue(ctx, queue.Treasury, processors.JobWithdraw,
		processors.ReceiptPayload{ReceiptID: receipt.ID}, 0)
	if err != nil {
		return fmt.Errorf("schedule withdraw: %w", err)
	}
	return s.receipts.Updates(receipt.ID, map[string]interface{}{
		"withdraw_status": models.WithdrawInProgress,
	})
}

// SubmitEvidences aggregates every provided evidence across all of the
// receipt's disputes into one bundle and submits it on each dispute.
// Submission is one-time; with acceptLoss the bundle carries a catch-all
// concession marker instead of (or on top of) the collected values.
func (s *Service) SubmitEvidences(ctx context.Context, receiptID, sellerID string, acceptLoss bool) error {
	receipt, err := s.receipts.FindByID(receiptID)
	if err != nil || receipt.SellerID != sellerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.DisputeStatus != models.DisputeAggOpen {
		return fmt.Errorf("%w: dispute_status=%s", ErrNoOpenDisputes, receipt.DisputeStatus)
	}
	disputes, err := s.disputes.ListByReceipt(receiptID)
	if err != nil {
		return fmt.Errorf("list disputes: %w", err)
	}

	bundle := make(map[string]string)
	if acceptLoss {
		bundle["uncategorized_text"] = acceptLossMarker
	}
	for _, dispute := range disputes {
		for i := range dispute.Evidences {
			evidence := &dispute.Evidences[i]
			if evidence.Provided() {
				bundle[evidence.EvidenceType] = evidence.Value()
			}
		}
	}
	for _, dispute := range disputes {
		if err := s.gateway.SubmitDisputeEvidence(ctx, dispute.StripeDisputeRef, bundle); err != nil {
			return fmt.Errorf("submit evidence for dispute %s: %w", dispute.StripeDisputeRef, err)
		}
	}
	return nil
}

// ResetEvidences blanks the values of every evidence row linked to the
// receipt's disputes so the seller can start the response over.
func (s *Service) ResetEvidences(receiptID, sellerID string) error {
	receipt, err := s.receipts.FindByID(receiptID)
	if err != nil || receipt.SellerID != sellerID {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	disputes, err := s.disputes.ListByReceipt(receiptID)
	if err != nil {
		return fmt.Errorf("list disputes: %w", err)
	}
	var ids []string
	for _, dispute := range disputes {
		for _, evidence := range dispute.Evidences {
			ids = append(ids, evidence.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.evidences.ResetValues(ids)
}

// ListForSeller returns the seller's receipts, newest first.
func (s *Service) ListForSeller(sellerID string) ([]models.Receipt, error) {
	return s.receipts.ListBySeller(sellerID)
}

// ListForBuyer returns the buyer's receipts, newest first.
func (s *Service) ListForBuyer(buyerID string) ([]models.Receipt, error) {
	return s.receipts.ListByBuyer(buyerID)
}

// Get loads one receipt with installments and refunds for either party.
func (s *Service) Get(receiptID, userID string) (*models.Receipt, error) {
	receipt, err := s.receipts.FindByIDWithRefunds(receiptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if receipt.SellerID != userID && receipt.BuyerID != userID {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	return receipt, nil
}
