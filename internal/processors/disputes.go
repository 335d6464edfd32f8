package processors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/money"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"

	"gorm.io/gorm"
)

// DisputesProcessor reconciles processor chargebacks with the ledger:
// recording disputes, collecting their required evidence, recouping dispute
// fees from the seller and unwinding taxes on losses.
type DisputesProcessor struct {
	disputes     repositories.DisputeRepository
	installments repositories.InstallmentRepository
	receipts     repositories.ReceiptRepository
	users        repositories.UserRepository
	evidences    repositories.EvidenceRepository
	gateway      fiat.Gateway
	homeCountry  string
	extraRate    float64
}

func NewDisputesProcessor(
	disputes repositories.DisputeRepository,
	installments repositories.InstallmentRepository,
	receipts repositories.ReceiptRepository,
	users repositories.UserRepository,
	evidences repositories.EvidenceRepository,
	gateway fiat.Gateway,
	homeCountry string,
	extraRate float64,
) *DisputesProcessor {
	if gateway == nil {
		panic("disputes processor requires a gateway")
	}
	return &DisputesProcessor{
		disputes:     disputes,
		installments: installments,
		receipts:     receipts,
		users:        users,
		evidences:    evidences,
		gateway:      gateway,
		homeCountry:  homeCountry,
		extraRate:    extraRate,
	}
}

// Handle dispatches one disputes-queue job.
func (p *DisputesProcessor) Handle(ctx context.Context, job queue.Job) queue.Result {
	if job.Name == JobProcessSucceededPaymentIntent {
		var payload DisputeRecoupmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.processSucceededPaymentIntent(ctx, payload)
	}

	var payload DisputePayload
	if err := job.Unmarshal(&payload); err != nil {
		return queue.Ignore(err)
	}
	dispute, err := p.gateway.RetrieveDispute(ctx, payload.DisputeRef)
	if err != nil {
		return queue.Retryf("invalid dispute_ref %s: %v", payload.DisputeRef, err)
	}

	switch job.Name {
	case JobProcessDisputeCreated:
		return p.processDisputeCreated(ctx, dispute)
	case JobProcessDisputeUpdated:
		return p.processDisputeUpdated(ctx, dispute)
	case JobProcessDisputeClosed:
		return p.processDisputeClosed(ctx, dispute)
	case JobProcessDisputeFundsReinstated:
		return p.processDisputeFundsReinstated(ctx, dispute)
	case JobProcessDisputeFundsWithdrawn:
		return p.processDisputeFundsWithdrawn(ctx, dispute)
	}
	return queue.Ignoref("unknown disputes job '%s'", job.Name)
}

// processDisputeCreated records the dispute, links it to the charged
// installment, flags duplicates and auto-creates the evidence rows its
// reason requires that no dispute on the receipt already satisfies.
func (p *DisputesProcessor) processDisputeCreated(ctx context.Context, dispute *fiat.Dispute) queue.Result {
	if _, err := p.disputes.FindByStripeRef(dispute.ID); err == nil {
		// The external reference is unique, so a redelivered creation event
		// lands here instead of inserting twice.
		return queue.Ignoref("dispute %s already recorded", dispute.ID)
	}
	installment, err := p.installments.FindByPaymentIntentRef(dispute.PaymentIntentID)
	if err != nil {
		return queue.Retryf("unable to locate installment for payment intent %s: %v", dispute.PaymentIntentID, err)
	}

	var duplicateOf *string
	existing, err := p.disputes.ListByInstallment(installment.ID)
	if err != nil {
		return queue.Retry(err)
	}
	for i := range existing {
		if existing[i].DuplicateOf == nil {
			duplicateOf = &existing[i].ID
			break
		}
	}

	all, err := p.disputes.ListByReceipt(installment.ReceiptID)
	if err != nil {
		return queue.Retry(err)
	}
	existingTypes := make(map[string]bool)
	for _, d := range all {
		for _, evidence := range d.Evidences {
			existingTypes[evidence.EvidenceType] = true
		}
	}

	row := &models.Dispute{
		InstallmentID:    installment.ID,
		StripeDisputeRef: dispute.ID,
		Reason:           dispute.Reason,
		EvidencesDueBy:   time.Unix(dispute.EvidenceDueBy, 0),
		DuplicateOf:      duplicateOf,
	}
	if err := p.disputes.Create(row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return queue.Ignoref("dispute %s created concurrently", dispute.ID)
		}
		return queue.Retry(err)
	}

	var evidences []models.Evidence
	for _, evidenceType := range RequiredEvidenceTypes(dispute.Reason) {
		if existingTypes[evidenceType] {
			continue
		}
		evidences = append(evidences, models.Evidence{
			Kind:         EvidenceCatalog[evidenceType].Kind,
			EvidenceType: evidenceType,
		})
	}
	if err := p.evidences.CreateBatch(evidences); err != nil {
		return queue.Retry(err)
	}
	if len(evidences) > 0 {
		if err := p.disputes.LinkEvidences(row, evidences); err != nil {
			return queue.Retry(err)
		}
	}

	p.updateReceiptDisputeStatus(installment.ReceiptID)
	return queue.Done()
}

// processDisputeUpdated persists open-state transitions only; terminal
// states arrive through processDisputeClosed.
func (p *DisputesProcessor) processDisputeUpdated(ctx context.Context, dispute *fiat.Dispute) queue.Result {
	if dispute.Status != models.DisputeNeedsResponse && dispute.Status != models.DisputeUnderReview {
		return queue.Done()
	}
	row, err := p.disputes.FindByStripeRef(dispute.ID)
	if err != nil {
		return queue.Retryf("unable to find dispute for %s: %v", dispute.ID, err)
	}
	row.Status = dispute.Status
	if err := p.disputes.Save(row); err != nil {
		return queue.Retry(err)
	}
	installment, err := p.installments.FindByID(row.InstallmentID)
	if err != nil {
		return queue.Retry(err)
	}
	p.updateReceiptDisputeStatus(installment.ReceiptID)
	return queue.Done()
}

// processDisputeClosed persists the terminal outcome; a loss also unwinds
// the disputed installment's tax transfer and tax transaction.
func (p *DisputesProcessor) processDisputeClosed(ctx context.Context, dispute *fiat.Dispute) queue.Result {
	if dispute.Status != models.DisputeWon && dispute.Status != models.DisputeLost {
		return queue.Done()
	}
	row, err := p.disputes.FindByStripeRef(dispute.ID)
	if err != nil {
		return queue.Retryf("unable to find dispute for %s: %v", dispute.ID, err)
	}
	if row.Status == models.DisputeWon || row.Status == models.DisputeLost {
		return queue.Ignoref("dispute %s already closed as %s", dispute.ID, row.Status)
	}
	installment, err := p.installments.FindByID(row.InstallmentID)
	if err != nil {
		return queue.Retry(err)
	}

	if dispute.Status == models.DisputeLost {
		receipt, err := p.receipts.FindByID(installment.ReceiptID)
		if err != nil {
			return queue.Retry(err)
		}
		seller, err := p.users.FindByID(receipt.SellerID)
		if err != nil {
			return queue.Retry(err)
		}
		if result := p.reverseTaxes(ctx, installment, receipt.ID, seller.StripeID); result.Outcome != queue.OutcomeDone {
			return result
		}
	}

	row.Status = dispute.Status
	if err := p.disputes.Save(row); err != nil {
		return queue.Retry(err)
	}
	p.updateReceiptDisputeStatus(installment.ReceiptID)
	return queue.Done()
}

// reverseTaxes mirrors the refund processor's tax unwind: the transfer is
// reversed only when not already reversed, then the tax transaction.
func (p *DisputesProcessor) reverseTaxes(ctx context.Context, installment *models.Installment, receiptID, sellerAccount string) queue.Result {
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

// processDisputeFundsReinstated refunds the recoupment charge by the sum of
// the dispute's non-negative balance movements.
func (p *DisputesProcessor) processDisputeFundsReinstated(ctx context.Context, dispute *fiat.Dispute) queue.Result {
	if dispute.RecoupmentIntentRef == "" {
		return queue.Done()
	}
	var reinstatedCents int64
	for _, net := range dispute.BalanceTxNetCents {
		if net > 0 {
			reinstatedCents += net
		}
	}
	if reinstatedCents == 0 {
		return queue.Done()
	}
	if err := p.gateway.CreatePartialRefund(ctx, dispute.RecoupmentIntentRef, reinstatedCents); err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// processDisputeFundsWithdrawn charges the seller's saved card for the net
// fee the processor withdrew, grossed up through the reverse fee formula.
func (p *DisputesProcessor) processDisputeFundsWithdrawn(ctx context.Context, dispute *fiat.Dispute) queue.Result {
	if dispute.RecoupmentIntentRef != "" {
		return queue.Ignoref("dispute %s fee already recouped", dispute.ID)
	}
	var feeCents int64
	for _, net := range dispute.BalanceTxNetCents {
		feeCents += net
	}
	if feeCents >= 0 {
		return queue.Done()
	}

	installment, err := p.installments.FindByPaymentIntentRef(dispute.PaymentIntentID)
	if err != nil {
		return queue.Retryf("unable to locate installment for payment intent %s: %v", dispute.PaymentIntentID, err)
	}
	receipt, err := p.receipts.FindByID(installment.ReceiptID)
	if err != nil {
		return queue.Retry(err)
	}
	seller, err := p.users.FindByID(receipt.SellerID)
	if err != nil {
		return queue.Retry(err)
	}
	method, err := p.gateway.RetrievePaymentMethod(ctx, seller.PaymentMethodID)
	if err != nil {
		return queue.Retry(err)
	}
	if method.CustomerID == "" {
		return queue.Ignoref("payment method %s has no customer", method.ID)
	}

	extraRate := 0.0
	if method.IsCard && method.CardCountry != "" && !strings.EqualFold(method.CardCountry, p.homeCountry) {
		extraRate = p.extraRate
	}
	recoupmentCents := int64(math.Floor(money.ReverseFee(money.FromCents(-feeCents), extraRate) * 100))

	_, err = p.gateway.CreateRecoupmentCharge(ctx, fiat.RecoupmentChargeParams{
		AmountCents:     recoupmentCents,
		CustomerID:      method.CustomerID,
		PaymentMethodID: method.ID,
		Description:     fmt.Sprintf("Recoupment charge for dispute %s", dispute.ID),
		Source:          fiat.SourceDispute,
		ReceiptID:       receipt.ID,
		DisputeID:       dispute.ID,
	})
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// processSucceededPaymentIntent records a succeeded fee-recoupment charge on
// the dispute, both processor-side and in the ledger.
func (p *DisputesProcessor) processSucceededPaymentIntent(ctx context.Context, payload DisputeRecoupmentPayload) queue.Result {
	if err := p.gateway.RecordDisputeRecoupment(ctx, payload.DisputeRef, payload.PaymentIntentRef); err != nil {
		return queue.Retry(err)
	}
	row, err := p.disputes.FindByStripeRef(payload.DisputeRef)
	if err != nil {
		return queue.Retryf("unable to find dispute for %s: %v", payload.DisputeRef, err)
	}
	row.FeePaid = true
	row.RecoupmentIntentRef = payload.PaymentIntentRef
	if err := p.disputes.Save(row); err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

// updateReceiptDisputeStatus re-reads every dispute on the receipt and
// persists the recomputed aggregate.
func (p *DisputesProcessor) updateReceiptDisputeStatus(receiptID string) {
	disputes, err := p.disputes.ListByReceipt(receiptID)
	if err != nil {
		log.Printf("unable to list disputes for receipt %s: %v", receiptID, err)
		return
	}
	status := DisputeStatusFrom(disputes)
	if err := p.receipts.Updates(receiptID, map[string]interface{}{"dispute_status": status}); err != nil {
		log.Printf("unable to update dispute status for receipt %s: %v", receiptID, err)
	}
}
