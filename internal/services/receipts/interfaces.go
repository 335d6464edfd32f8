package receipts

import (
	"context"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
)

// The service consumes narrow views of the repositories and the fiat gateway;
// the concrete implementations in internal/repositories and
// internal/gateways/fiat satisfy them.

type ReceiptStore interface {
	Create(receipt *models.Receipt) error
	FindByID(id string) (*models.Receipt, error)
	FindByIDWithInstallments(id string) (*models.Receipt, error)
	FindByIDWithRefunds(id string) (*models.Receipt, error)
	ListBySeller(sellerID string) ([]models.Receipt, error)
	ListByBuyer(buyerID string) ([]models.Receipt, error)
	Updates(id string, fields map[string]interface{}) error
}

type InstallmentStore interface {
	Create(installment *models.Installment) error
	Save(installment *models.Installment) error
}

type RefundStore interface {
	Create(refund *models.Refund) error
}

type DisputeStore interface {
	ListByReceipt(receiptID string) ([]models.Dispute, error)
}

type EvidenceStore interface {
	ResetValues(ids []string) error
}

type UserStore interface {
	FindByID(id string) (*models.User, error)
}

// PaymentGateway is the slice of the fiat gateway the receipt operations use.
type PaymentGateway interface {
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	RetrievePaymentMethod(ctx context.Context, id string) (*fiat.PaymentMethod, error)
	CreateTaxCalculation(ctx context.Context, p fiat.TaxCalculationParams) (*fiat.TaxCalculation, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*fiat.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id, reason string) (*fiat.PaymentIntent, error)
	CreateRecoupmentCharge(ctx context.Context, p fiat.RecoupmentChargeParams) (*fiat.PaymentIntent, error)
	SubmitDisputeEvidence(ctx context.Context, disputeID string, evidence map[string]string) error
}
