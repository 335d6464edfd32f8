package processors

import (
	"context"
	"fmt"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
)

// cardProcessingWindow is how long the card network holds refunded funds
// before they settle back to the buyer.
const cardProcessingWindow = 3 * 24 * time.Hour

// recoupmentSettleDelay keeps recoupment funds untouched for a day after
// they become available, so the follow-up refunds cannot bounce.
const recoupmentSettleDelay = 24 * time.Hour

// RefundsProcessor funds and issues per-installment refunds once a seller
// recoupment charge has settled.
type RefundsProcessor struct {
	receipts     repositories.ReceiptRepository
	installments repositories.InstallmentRepository
	refunds      repositories.RefundRepository
	users        repositories.UserRepository
	gateway      fiat.Gateway
	queues       Enqueuer
	poll         PollConfig
	sleep        func(time.Duration)
	now          func() time.Time
}

func NewRefundsProcessor(
	receipts repositories.ReceiptRepository,
	installments repositories.InstallmentRepository,
	refunds repositories.RefundRepository,
	users repositories.UserRepository,
	gateway fiat.Gateway,
	queues Enqueuer,
	poll PollConfig,
) *RefundsProcessor {
	if gateway == nil || queues == nil {
		panic("refunds processor requires a gateway and a queue registry")
	}
	return &RefundsProcessor{
		receipts:     receipts,
		installments: installments,
		refunds:      refunds,
		users:        users,
		gateway:      gateway,
		queues:       queues,
		poll:         poll,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Handle dispatches one refunds-queue job.
func (p *RefundsProcessor) Handle(ctx context.Context, job queue.Job) queue.Result {
	switch job.Name {
	case JobProcessSucceededPaymentIntent:
		var payload PaymentIntentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processSucceededPaymentIntent(ctx, payload.PaymentIntentRef)
	case JobProcessAvailableRecoupment:
		var payload ReceiptPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processAvailableRecoupment(ctx, payload.ReceiptID)
	case JobProcessChargeRefunded:
		var payload ChargePayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processChargeRefunded(ctx, payload.ChargeRef)
	}
	return queue.Ignoref("unknown refunds job '%s'", job.Name)
}

// processSucceededPaymentIntent handles a succeeded recoupment charge: it
// waits for the charge's balance transaction to expose when the funds
// become available and schedules the actual refund work past that point.
func (p *RefundsProcessor) processSucceededPaymentIntent(ctx context.Context, intentRef string) queue.Result {
	intent, err := p.gateway.RetrievePaymentIntent(ctx, intentRef)
	if err != nil {
		return queue.Retryf("invalid payment_intent_ref %s: %v", intentRef, err)
	}

	var availableOn int64
	for delay, combined := p.poll.Initial, time.Duration(0); combined < p.poll.MaxTotal; delay *= 2 {
		availableOn, err = p.gateway.ChargeAvailableOn(ctx, intent.LatestChargeID)
		if err == nil && availableOn > 0 {
			break
		}
		p.sleep(delay)
		combined += delay
	}
	if availableOn == 0 {
		return queue.Retryf("unable to identify recoupment funds availability for %s", intentRef)
	}

	settledAt := time.Unix(availableOn, 0).Add(recoupmentSettleDelay)
	delay := settledAt.Sub(p.now())
	if delay < 0 {
		delay = 0
	}
	err = p.queues.Enqueue(ctx, queue.Refunds, JobProcessAvailableRecoupment,
		ReceiptPayload{ReceiptID: intent.Metadata["receipt_id"]}, delay)
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// processAvailableRecoupment walks every refundable installment of the
// receipt: reverses its tax records and issues a refund against the
// original charge, marking the Refund row funded.
func (p *RefundsProcessor) processAvailableRecoupment(ctx context.Context, receiptID string) queue.Result {
	receipt, err := p.receipts.FindByIDWithRefunds(receiptID)
	if err != nil {
		return queue.Retryf("invalid receipt_id %s: %v", receiptID, err)
	}
	seller, err := p.users.FindByID(receipt.SellerID)
	if err != nil {
		return queue.Retryf("invalid seller_id '%s': %v", receipt.SellerID, err)
	}

	for i := range receipt.Installments {
		installment := &receipt.Installments[i]
		if installment.PaymentIntentRef == "" || installment.Refund == nil {
			continue
		}
		if installment.Refund.Status != models.RefundUnitRequested {
			// Already funded or done; redelivery must not refund twice.
			continue
		}
		if result := p.reverseTaxes(ctx, installment, receipt.ID, seller.StripeID); result.Outcome != queue.OutcomeDone {
			return result
		}
		refund, err := p.gateway.CreateRefund(ctx, installment.PaymentIntentRef, installment.ID)
		if err != nil {
			return queue.Retry(err)
		}
		installment.Refund.Status = models.RefundUnitFunded
		installment.Refund.StripeRefundRef = refund.ID
		if err := p.refunds.Save(installment.Refund); err != nil {
			return queue.Retry(err)
		}
	}
	return queue.Done()
}

// reverseTaxes undoes the tax transfer and tax transaction recorded for a
// paid installment. The transfer is checked first so a redelivered job
// cannot reverse it twice; the same contract is used on lost disputes.
func (p *RefundsProcessor) reverseTaxes(ctx context.Context, installment *models.Installment, receiptID, sellerAccount string) queue.Result {
	if installment.TaxTransferRef != "" {
		reversed, err := p.gateway.TransferReversed(ctx, installment.TaxTransferRef, sellerAccount)
		if err != nil {
			return queue.Retry(err)
		}
		if !reversed {
			if err := p.gateway.ReverseTransfer(ctx, installment.TaxTransferRef, sellerAccount); err != nil {
				return queue.Retry(err)
			}
		}
	}
	if installment.TaxTransactionRef != "" {
		reference := fmt.Sprintf("receipt(%s),installment(%s,tax_transaction(%s))",
			receiptID, installment.ID, installment.TaxTransactionRef)
		if err := p.gateway.ReverseTaxTransaction(ctx, installment.TaxTransactionRef, reference); err != nil {
			return queue.Retry(err)
		}
	}
	return queue.Done()
}

// processChargeRefunded finalizes one refund once the processor reports the
// charge refunded, and hands the installment to the treasury queue.
func (p *RefundsProcessor) processChargeRefunded(ctx context.Context, chargeRef string) queue.Result {
	charge, err := p.gateway.RetrieveChargeRefund(ctx, chargeRef)
	if err != nil {
		return queue.Retryf("invalid charge_ref %s: %v", chargeRef, err)
	}
	if !charge.Refunded || charge.RefundID == "" {
		return queue.Retryf("charge %s carries no refund", chargeRef)
	}
	balanceTx, err := p.gateway.RetrieveBalanceTransaction(ctx, charge.BalanceTransactionID)
	if err != nil {
		return queue.Retry(err)
	}
	availableOn := time.Unix(balanceTx.Created, 0).Add(cardProcessingWindow)

	installment, err := p.installments.FindByPaymentIntentRef(charge.PaymentIntentID)
	if err != nil {
		return queue.Ignoref("unable to locate installment for payment intent %s: %v", charge.PaymentIntentID, err)
	}
	refund, err := p.refunds.FindByInstallmentID(installment.ID)
	if err != nil {
		return queue.Ignoref("installment %s has no refund row: %v", installment.ID, err)
	}
	if refund.StripeRefundRef != charge.RefundID {
		// Data integrity guard: the refund on the charge is not the refund
		// we issued for this installment.
		return queue.Ignoref("refund reference mismatch on installment %s: have %s, charge carries %s",
			installment.ID, refund.StripeRefundRef, charge.RefundID)
	}
	if refund.Status == models.RefundUnitDone {
		return queue.Ignoref("refund for installment %s already finalized", installment.ID)
	}

	refund.Status = models.RefundUnitDone
	refund.AvailableOn = &availableOn
	if err := p.refunds.Save(refund); err != nil {
		return queue.Retry(err)
	}
	err = p.queues.Enqueue(ctx, queue.Treasury, JobRefund,
		InstallmentPayload{InstallmentID: installment.ID}, 0)
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}
