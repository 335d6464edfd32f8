package processors

import (
	"context"
	"time"
)

// Job names, closed per queue. Enqueue through the typed payloads below so a
// name can never travel with the wrong payload shape.
const (
	JobCreatePaymentIntent           = "createPaymentIntent"
	JobConfirmPaymentIntent          = "confirmPaymentIntent"
	JobProcessSucceededPaymentIntent = "processSucceededPaymentIntent"
	JobProcessPaidOutPaymentIntent   = "processPaidOutPaymentIntent"

	JobProcessAvailableRecoupment = "processAvailableRecoupment"
	JobProcessChargeRefunded      = "processChargeRefunded"

	JobProcessDisputeCreated         = "processDisputeCreated"
	JobProcessDisputeUpdated         = "processDisputeUpdated"
	JobProcessDisputeClosed          = "processDisputeClosed"
	JobProcessDisputeFundsReinstated = "processDisputeFundsReinstated"
	JobProcessDisputeFundsWithdrawn  = "processDisputeFundsWithdrawn"

	JobPledge   = "pledge"
	JobConfirm  = "confirm"
	JobWithdraw = "withdraw"
	JobRefund   = "refund"
)

// Enqueuer is the follow-up side of a processor: it adds jobs to named
// queues. The queue registry implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload interface{}, delay time.Duration) error
}

// InstallmentPayload addresses a single installment.
type InstallmentPayload struct {
	InstallmentID string `json:"installment_id"`
}

// PaidOutPayload records which payout settled the installment.
type PaidOutPayload struct {
	InstallmentID string `json:"installment_id"`
	PayoutRef     string `json:"payout_ref"`
}

// PaymentIntentPayload addresses a processor-side payment intent.
type PaymentIntentPayload struct {
	PaymentIntentRef string `json:"payment_intent_ref"`
}

// ReceiptPayload addresses a receipt.
type ReceiptPayload struct {
	ReceiptID string `json:"receipt_id"`
}

// ChargePayload addresses a processor-side charge.
type ChargePayload struct {
	ChargeRef string `json:"charge_ref"`
}

// DisputePayload addresses a processor-side dispute.
type DisputePayload struct {
	DisputeRef string `json:"dispute_ref"`
}

// DisputeRecoupmentPayload links a succeeded recoupment charge back to its
// dispute.
type DisputeRecoupmentPayload struct {
	DisputeRef       string `json:"dispute_ref"`
	PaymentIntentRef string `json:"payment_intent_ref"`
}

// PledgePayload opens on-chain escrow for a receipt.
type PledgePayload struct {
	UserID             string `json:"user_id"`
	ReceiptID          string `json:"receipt_id"`
	BuyerWalletAddress string `json:"buyer_wallet_address"`
	AmountCents        int64  `json:"amount_cents"`
}

// PollConfig bounds the short polls processors run while waiting for
// external data to propagate (receipt URLs, balance transactions). The delay
// doubles each attempt until MaxTotal combined wait is reached.
type PollConfig struct {
	Initial  time.Duration
	MaxTotal time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{Initial: 200 * time.Millisecond, MaxTotal: 10 * time.Second}
}
