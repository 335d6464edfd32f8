package processors

import (
	"context"
	"errors"
	"log"
	"time"

	"splitpay/internal/gateways/treasury"
	"splitpay/internal/models"
	"splitpay/internal/money"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
)

// TreasuryProcessor settles receipts on-chain: pledging escrow at purchase,
// confirming each paid-out installment, releasing the escrow on withdraw and
// unwinding it on refund. Contract reverts are deterministic and therefore
// never retried.
type TreasuryProcessor struct {
	receipts     repositories.ReceiptRepository
	installments repositories.InstallmentRepository
	users        repositories.UserRepository
	chain        treasury.Gateway
	paymentRail  string
}

func NewTreasuryProcessor(
	receipts repositories.ReceiptRepository,
	installments repositories.InstallmentRepository,
	users repositories.UserRepository,
	chain treasury.Gateway,
	paymentRail string,
) *TreasuryProcessor {
	if chain == nil {
		panic("treasury processor requires a chain gateway")
	}
	return &TreasuryProcessor{
		receipts:     receipts,
		installments: installments,
		users:        users,
		chain:        chain,
		paymentRail:  paymentRail,
	}
}

// Handle dispatches one treasury-queue job.
func (p *TreasuryProcessor) Handle(ctx context.Context, job queue.Job) queue.Result {
	switch job.Name {
	case JobPledge:
		var payload PledgePayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.pledge(ctx, payload)
	case JobConfirm:
		var payload InstallmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.confirm(ctx, payload.InstallmentID)
	case JobWithdraw:
		var payload ReceiptPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.withdraw(ctx, payload.ReceiptID)
	case JobRefund:
		var payload InstallmentPayload
		if err := job.Unmarshal(&payload); err != nil {
			return queue.Ignore(err)
		}
		return p.refund(ctx, payload.InstallmentID)
	}
	return queue.Ignoref("unknown treasury job '%s'", job.Name)
}

// classifyChainError maps gateway failures onto queue outcomes: reverts are
// terminal, everything else (missing receipts, rpc trouble) is transient.
func classifyChainError(err error) queue.Result {
	var revert *treasury.RevertError
	if errors.As(err, &revert) {
		return queue.Cancel(revert.Error())
	}
	return queue.Retry(err)
}

func (p *TreasuryProcessor) pledge(ctx context.Context, payload PledgePayload) queue.Result {
	seller, err := p.users.FindByID(payload.UserID)
	if err != nil {
		return queue.Retryf("invalid user_id %s: %v", payload.UserID, err)
	}
	receipt, err := p.receipts.FindByID(payload.ReceiptID)
	if err != nil {
		return queue.Retryf("invalid receipt_id %s: %v", payload.ReceiptID, err)
	}
	if receipt.PledgeTxHash != "" {
		return queue.Ignoref("receipt %s already pledged", receipt.ID)
	}
	if seller.LiquidationRail != p.paymentRail || seller.LiquidationAddress == "" {
		return queue.Retryf("invalid liquidation config for user %s", payload.UserID)
	}

	hash, err := p.chain.Pledge(ctx, treasury.PledgeParams{
		PayeeAddress:   seller.LiquidationAddress,
		PledgorAddress: payload.BuyerWalletAddress,
		ReceiptID:      receipt.ID,
		AmountCents:    payload.AmountCents,
	})
	if err != nil {
		return classifyChainError(err)
	}
	if err := p.receipts.Updates(receipt.ID, map[string]interface{}{"pledge_tx_hash": hash}); err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

func (p *TreasuryProcessor) confirm(ctx context.Context, installmentID string) queue.Result {
	installment, err := p.installments.FindByIDWithReceipt(installmentID)
	if err != nil {
		return queue.Retryf("invalid installment_id %s: %v", installmentID, err)
	}
	if installment.Status == models.InstallmentCanceled {
		return queue.Cancel("installment canceled due to refund request")
	}
	if installment.ConfirmTxHash != "" {
		return queue.Ignoref("installment %s already confirmed on-chain", installmentID)
	}
	receipt := installment.Receipt
	if receipt == nil {
		return queue.Retryf("invalid receipt for installment %s", installmentID)
	}

	result, err := p.chain.Confirm(ctx, installment.ReceiptID, money.ToCents(installment.Net))
	if err != nil {
		return classifyChainError(err)
	}
	installment.ConfirmTxHash = result.TxHash
	if err := p.installments.Save(installment); err != nil {
		return queue.Retry(err)
	}

	allPaidOut := true
	for _, sibling := range receipt.Installments {
		if sibling.Status == models.InstallmentCanceled {
			continue
		}
		status := sibling.Status
		if sibling.ID == installment.ID {
			status = installment.Status
		}
		if status != models.InstallmentPaidOut {
			allPaidOut = false
			break
		}
	}
	if allPaidOut {
		flipped, err := p.receipts.MarkWithdrawAvailable(receipt.ID)
		if err != nil {
			return queue.Retry(err)
		}
		if flipped {
			log.Printf("receipt %s is ready for withdrawal", receipt.ID)
		}
	}
	if result.TokenID != nil {
		tokenID := result.TokenID.String()
		if err := p.receipts.Updates(receipt.ID, map[string]interface{}{"nft_id": tokenID}); err != nil {
			return queue.Retry(err)
		}
	}
	return queue.Done()
}

func (p *TreasuryProcessor) withdraw(ctx context.Context, receiptID string) queue.Result {
	receipt, err := p.receipts.FindByID(receiptID)
	if err != nil {
		return queue.Retryf("invalid receipt_id %s: %v", receiptID, err)
	}
	if receipt.WithdrawStatus == models.WithdrawDone {
		return queue.Ignoref("receipt %s already withdrawn", receiptID)
	}

	hash, err := p.chain.Withdraw(ctx, receipt.ID)
	if err != nil {
		result := classifyChainError(err)
		if result.Outcome == queue.OutcomeCancel {
			if updErr := p.receipts.Updates(receipt.ID, map[string]interface{}{"withdraw_status": models.WithdrawFailed}); updErr != nil {
				return queue.Retry(updErr)
			}
		}
		return result
	}
	err = p.receipts.Updates(receipt.ID, map[string]interface{}{
		"withdraw_tx_hash": hash,
		"withdraw_status":  models.WithdrawDone,
	})
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}

func (p *TreasuryProcessor) refund(ctx context.Context, installmentID string) queue.Result {
	installment, err := p.installments.FindByIDWithReceipt(installmentID)
	if err != nil {
		return queue.Retryf("invalid installment_id %s: %v", installmentID, err)
	}
	receipt := installment.Receipt
	if receipt == nil {
		return queue.Retryf("invalid receipt for installment %s", installmentID)
	}
	if receipt.RefundTxHash != "" {
		return queue.Ignoref("receipt %s already refunded on-chain", receipt.ID)
	}

	// Only proceed once every sibling's refund has settled; until then each
	// finished refund re-lands here and the last one performs the unwind.
	var latestAvailableOn *time.Time
	refundsSeen := 0
	for _, sibling := range receipt.Installments {
		if sibling.Refund == nil {
			continue
		}
		refundsSeen++
		if sibling.Refund.Status != models.RefundUnitDone {
			log.Printf("receipt %s: not all refunds are processed yet", receipt.ID)
			return queue.Done()
		}
		if sibling.Refund.AvailableOn != nil {
			if latestAvailableOn == nil || sibling.Refund.AvailableOn.After(*latestAvailableOn) {
				latestAvailableOn = sibling.Refund.AvailableOn
			}
		}
	}
	if refundsSeen == 0 {
		return queue.Ignoref("receipt %s has no refund rows", receipt.ID)
	}

	hash, err := p.chain.Refund(ctx, receipt.ID)
	if err != nil {
		result := classifyChainError(err)
		if result.Outcome == queue.OutcomeCancel {
			if updErr := p.receipts.Updates(receipt.ID, map[string]interface{}{"refund_status": models.RefundFailed}); updErr != nil {
				return queue.Retry(updErr)
			}
		}
		return result
	}
	err = p.receipts.Updates(receipt.ID, map[string]interface{}{
		"refund_status":       models.RefundDone,
		"refund_available_on": latestAvailableOn,
		"refund_tx_hash":      hash,
		"nft_id":              nil,
	})
	if err != nil {
		return queue.Retry(err)
	}
	return queue.Done()
}
