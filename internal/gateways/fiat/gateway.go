// Package fiat wraps the card-processing provider behind a gateway interface
// so the job processors branch on one failure shape instead of raw transport
// errors.
package fiat

import "context"

// Gateway is the typed client for the fiat payment processor. Every method
// wraps provider errors into *fiat.Error.
type Gateway interface {
	// Payment intents
	CreateInstallmentIntent(ctx context.Context, p InstallmentIntentParams) (*PaymentIntent, error)
	CreateRecoupmentCharge(ctx context.Context, p RecoupmentChargeParams) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	AttachPaymentMethod(ctx context.Context, intentID, paymentMethodID string) error
	ConfirmIntentOffSession(ctx context.Context, intentID string) error
	CancelPaymentIntent(ctx context.Context, intentID, reason string) (*PaymentIntent, error)
	IntentReceiptURL(ctx context.Context, intentID string) (string, error)

	// Customers and payment methods
	DefaultPaymentMethod(ctx context.Context, customerID string) (string, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)

	// Taxes
	CreateTaxCalculation(ctx context.Context, p TaxCalculationParams) (*TaxCalculation, error)
	CreateTaxTransaction(ctx context.Context, p TaxTransactionParams) (string, error)
	ReverseTaxTransaction(ctx context.Context, originalTransaction, reference string) error

	// Transfers
	CreateTransfer(ctx context.Context, p TransferParams) (string, error)
	TransferReversed(ctx context.Context, transferID, onAccount string) (bool, error)
	ReverseTransfer(ctx context.Context, transferID, onAccount string) error

	// Charges, refunds and balance transactions
	CreateRefund(ctx context.Context, paymentIntentID, installmentID string) (*Refund, error)
	CreatePartialRefund(ctx context.Context, paymentIntentID string, amountCents int64) error
	ChargeAvailableOn(ctx context.Context, chargeID string) (int64, error)
	RetrieveChargeRefund(ctx context.Context, chargeID string) (*ChargeRefund, error)
	RetrieveBalanceTransaction(ctx context.Context, id string) (*BalanceTransaction, error)
	PayoutPaymentIntents(ctx context.Context, payoutID, connectedAccount string) ([]string, error)

	// Disputes
	RetrieveDispute(ctx context.Context, id string) (*Dispute, error)
	RecordDisputeRecoupment(ctx context.Context, disputeID, paymentIntentID string) error
	SubmitDisputeEvidence(ctx context.Context, disputeID string, evidence map[string]string) error
}
