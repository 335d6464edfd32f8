package processors

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/money"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
)

// TransferGroup tags every charge and transfer belonging to a receipt so the
// processor can net them per receipt.
func TransferGroup(receiptID string) string {
	return "receipt_tx_" + receiptID
}

// InstallmentsProcessor drives each installment through its state machine:
// created -> payment_scheduled -> paid-in -> paid-out, with failed as the
// retryable branch and canceled as the absorbing one.
type InstallmentsProcessor struct {
	installments    repositories.InstallmentRepository
	receipts        repositories.ReceiptRepository
	users           repositories.UserRepository
	gateway         fiat.Gateway
	queues          Enqueuer
	platformAccount string
	poll            PollConfig
	sleep           func(time.Duration)
}

func NewInstallmentsProcessor(
	installments repositories.InstallmentRepository,
	receipts repositories.ReceiptRepository,
	users repositories.UserRepository,
	gateway fiat.Gateway,
	queues Enqueuer,
	platformAccount string,
	poll PollConfig,
) *InstallmentsProcessor {
	if gateway == nil || queues == nil {
		panic("installments processor requires a gateway and a queue registry")
	}
	return &InstallmentsProcessor{
		installments:    installments,
		receipts:        receipts,
		users:           users,
		gateway:         gateway,
		queues:          queues,
		platformAccount: platformAccount,
		poll:            poll,
		sleep:           time.Sleep,
	}
}

// Handle dispatches one installments-queue job.
func (p *InstallmentsProcessor) Handle(ctx context.Context, job queue.Job) queue.Result {
	switch job.Name {
	case JobCreatePaymentIntent:
		var payload InstallmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.createPaymentIntent(ctx, payload.InstallmentID)
	case JobConfirmPaymentIntent:
		var payload InstallmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.confirmPaymentIntent(ctx, payload.InstallmentID)
	case JobProcessSucceededPaymentIntent:
		var payload InstallmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processSucceededPaymentIntent(ctx, payload.InstallmentID)
	case JobProcessPaidOutPaymentIntent:
		var payload PaidOutPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processPaidOutPaymentIntent(ctx, payload)
	}
	return queue.Ignoref("unknown installments job '%s'", job.Name)
}

func (p *InstallmentsProcessor) createPaymentIntent(ctx context.Context, installmentID string) queue.Result {
	installment, err := p.installments.FindByID(installmentID)
	if err != nil {
		return queue.Retryf("invalid installment_id %s: %v", installmentID, err)
	}
	if installment.Status == models.InstallmentCanceled {
		return queue.Cancel("installment canceled due to refund request")
	}
	if installment.PaymentIntentRef != "" {
		// Redelivery after the intent was already opened.
		return queue.Ignoref("installment %s already has a payment intent", installmentID)
	}
	receipt, err := p.receipts.FindByID(installment.ReceiptID)
	if err != nil {
		return queue.Retryf("invalid receipt_id '%s': %v", installment.ReceiptID, err)
	}
	seller, err := p.users.FindByID(receipt.SellerID)
	if err != nil {
		return queue.Retryf("invalid seller_id '%s': %v", receipt.SellerID, err)
	}

	description := fmt.Sprintf("Payment for receipt %s", receipt.ID)
	if receipt.TotalInstallments > 1 {
		description = fmt.Sprintf("Installment %d of %d for receipt %s",
			installment.Idx+1, receipt.TotalInstallments, receipt.ID)
	}

	intent, err := p.gateway.CreateInstallmentIntent(ctx, fiat.InstallmentIntentParams{
		TransferGroup: TransferGroup(receipt.ID),
		CustomerID:    receipt.CustomerRef,
		AmountCents:   money.ToCents(installment.Amount),
		FeeCents:      money.ToCents(installment.Fee),
		SellerAccount: seller.StripeID,
		Description:   description,
		InstallmentID: installment.ID,
	})
	if err != nil {
		return queue.Retry(err)
	}

	installment.PaymentIntentRef = intent.ID
	installment.Status = models.InstallmentPaymentScheduled
	if err := p.installments.Save(installment); err != nil {
		return queue.Retry(err)
	}
	err = p.queues.Enqueue(ctx, queue.Installments, JobConfirmPaymentIntent,
		InstallmentPayload{InstallmentID: installment.ID}, 0)
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

func (p *InstallmentsProcessor) confirmPaymentIntent(ctx context.Context, installmentID string) queue.Result {
	installment, err := p.installments.FindByID(installmentID)
	if err != nil {
		return queue.Retryf("invalid installment_id %s: %v", installmentID, err)
	}
	if installment.Status == models.InstallmentCanceled {
		return queue.Cancel("installment canceled due to refund request")
	}
	if installment.PaymentIntentRef == "" {
		return queue.Retryf("installment %s is missing its payment intent", installmentID)
	}
	receipt, err := p.receipts.FindByID(installment.ReceiptID)
	if err != nil {
		return queue.Retryf("invalid receipt_id '%s': %v", installment.ReceiptID, err)
	}

	methodID, err := p.gateway.DefaultPaymentMethod(ctx, receipt.CustomerRef)
	if err != nil {
		return queue.Retry(err)
	}
	if err := p.gateway.AttachPaymentMethod(ctx, installment.PaymentIntentRef, methodID); err != nil {
		return queue.Retry(err)
	}
	if err := p.gateway.ConfirmIntentOffSession(ctx, installment.PaymentIntentRef); err != nil {
		now := time.Now()
		installment.Status = models.InstallmentFailed
		installment.FailedTimes++
		installment.LastFailureAt = &now
		installment.LastFailureReason = err.Error()
		if saveErr := p.installments.Save(installment); saveErr != nil {
			return queue.Retry(saveErr)
		}
		p.updateReceiptStatus(receipt)
		return queue.Retry(err)
	}
	return queue.Done()
}

func (p *InstallmentsProcessor) processSucceededPaymentIntent(ctx context.Context, installmentID string) queue.Result {
	installment, err := p.installments.FindByID(installmentID)
	if err != nil {
		return queue.Ignoref("invalid installment_id %s: %v", installmentID, err)
	}
	if installment.Status == models.InstallmentCanceled {
		return queue.Cancel("installment canceled due to refund request")
	}
	if installment.Status == models.InstallmentPaidIn || installment.Status == models.InstallmentPaidOut {
		return queue.Ignoref("installment %s already settled", installmentID)
	}
	receipt, err := p.receipts.FindByID(installment.ReceiptID)
	if err != nil {
		return queue.Ignoref("invalid receipt_id '%s': %v", installment.ReceiptID, err)
	}

	if receipt.TaxAmount > 0 && installment.TaxTransactionRef == "" {
		if result := p.settleTaxes(ctx, installment, receipt); result.Outcome != queue.OutcomeDone {
			return result
		}
	}

	installment.Status = models.InstallmentPaidIn
	if err := p.installments.Save(installment); err != nil {
		return queue.Retry(err)
	}
	p.updateReceiptStatus(receipt)

	if url := p.pollReceiptURL(ctx, installment.PaymentIntentRef); url != "" {
		installment.ReceiptURL = url
		if err := p.installments.Save(installment); err != nil {
			log.Printf("unable to store receipt url for installment %s: %v", installment.ID, err)
		}
	}
	return queue.Done()
}

// settleTaxes computes, records and transfers the sales tax share of one
// paid installment to the platform account.
func (p *InstallmentsProcessor) settleTaxes(ctx context.Context, installment *models.Installment, receipt *models.Receipt) queue.Result {
	seller, err := p.users.FindByID(receipt.SellerID)
	if err != nil {
		return queue.Retryf("invalid seller_id '%s': %v", receipt.SellerID, err)
	}
	calculation, err := p.gateway.CreateTaxCalculation(ctx, fiat.TaxCalculationParams{
		CustomerID:  receipt.CustomerRef,
		Reference:   installment.ID,
		AmountCents: money.ToCents(installment.Amount),
		Inclusive:   true,
	})
	if err != nil {
		return queue.Retry(err)
	}
	taxTransactionRef, err := p.gateway.CreateTaxTransaction(ctx, fiat.TaxTransactionParams{
		CalculationID: calculation.ID,
		Reference:     fmt.Sprintf("installment(%s)", installment.ID),
		Metadata: map[string]string{
			"tax_calculation_id": calculation.ID,
			"installment_id":     installment.ID,
			"receipt_id":         receipt.ID,
			"tax_source":         "marketplace",
			"tax_jurisdictions":  strings.Join(calculation.Jurisdictions, "|"),
		},
	})
	if err != nil {
		return queue.Retry(err)
	}
	taxTransferRef, err := p.gateway.CreateTransfer(ctx, fiat.TransferParams{
		AmountCents:   calculation.TaxAmountInclusive,
		Currency:      calculation.Currency,
		Destination:   p.platformAccount,
		TransferGroup: TransferGroup(receipt.ID),
		Description:   fmt.Sprintf("Sales tax transfer for installment %s of receipt %s", installment.ID, receipt.ID),
		OnAccount:     seller.StripeID,
		Metadata: map[string]string{
			"tax_transaction_id": taxTransactionRef,
			"installment_id":     installment.ID,
			"receipt_id":         receipt.ID,
		},
	})
	if err != nil {
		return queue.Retry(err)
	}
	installment.TaxTransactionRef = taxTransactionRef
	installment.TaxTransferRef = taxTransferRef
	if err := p.installments.Save(installment); err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// pollReceiptURL waits for the processor-side receipt URL to propagate, with
// a doubling delay bounded by the poll config.
func (p *InstallmentsProcessor) pollReceiptURL(ctx context.Context, intentRef string) string {
	for delay, combined := p.poll.Initial, time.Duration(0); combined < p.poll.MaxTotal; delay *= 2 {
		url, err := p.gateway.IntentReceiptURL(ctx, intentRef)
		if err == nil && url != "" {
			return url
		}
		p.sleep(delay)
		combined += delay
	}
	return ""
}

func (p *InstallmentsProcessor) processPaidOutPaymentIntent(ctx context.Context, payload PaidOutPayload) queue.Result {
	installment, err := p.installments.FindByID(payload.InstallmentID)
	if err != nil {
		return queue.Retryf("invalid installment_id %s: %v", payload.InstallmentID, err)
	}
	if installment.Status == models.InstallmentCanceled {
		return queue.Cancel("installment canceled due to refund request")
	}
	if installment.Status == models.InstallmentPaidOut {
		return queue.Ignoref("installment %s already paid out", installment.ID)
	}
	installment.Status = models.InstallmentPaidOut
	installment.PayoutRef = payload.PayoutRef
	if err := p.installments.Save(installment); err != nil {
		return queue.Retry(err)
	}
	err = p.queues.Enqueue(ctx, queue.Treasury, JobConfirm,
		InstallmentPayload{InstallmentID: installment.ID}, 0)
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// updateReceiptStatus re-reads the receipt's installments and persists the
// recomputed status.
func (p *InstallmentsProcessor) updateReceiptStatus(receipt *models.Receipt) {
	installments, err := p.installments.ListByReceipt(receipt.ID)
	if err != nil {
		log.Printf("unable to list installments for receipt %s: %v", receipt.ID, err)
		return
	}
	status := ReceiptStatusFrom(receipt.Status, installments)
	if status == receipt.Status {
		return
	}
	if err := p.receipts.Updates(receipt.ID, map[string]interface{}{"status": status}); err != nil {
		log.Printf("unable to update status for receipt %s: %v", receipt.ID, err)
	}
}
