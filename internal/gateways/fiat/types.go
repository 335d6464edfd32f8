package fiat

// PaymentIntent is the gateway view of a processor charge request.
type PaymentIntent struct {
	ID             string
	Status         string
	LatestChargeID string
	Metadata       map[string]string
}

// Intent statuses the processors branch on.
const (
	IntentSucceeded = "succeeded"
	IntentCanceled  = "canceled"
)

// Metadata sources tagged onto payment intents so webhook routing can tell
// installment charges, refund recoupments and dispute recoupments apart.
const (
	SourceInstallment = "installment"
	SourceRefund      = "refund"
	SourceDispute     = "dispute"
)

// InstallmentIntentParams opens an installment charge with the seller as the
// payout destination and the platform fee withheld.
type InstallmentIntentParams struct {
	TransferGroup string
	CustomerID    string
	AmountCents   int64
	FeeCents      int64
	SellerAccount string
	Description   string
	InstallmentID string
}

// RecoupmentChargeParams charges a saved payment method off-session to fund
// a refund or a dispute fee.
type RecoupmentChargeParams struct {
	AmountCents     int64
	CustomerID      string
	PaymentMethodID string
	Description     string
	Source          string // SourceRefund or SourceDispute
	ReceiptID       string
	DisputeID       string
}

// PaymentMethod carries the attributes fee computation needs.
type PaymentMethod struct {
	ID          string
	CustomerID  string
	IsCard      bool
	CardCountry string
}

// TaxCalculationParams computes tax for one installment line item.
type TaxCalculationParams struct {
	CustomerID  string
	Reference   string
	AmountCents int64
	Inclusive   bool
}

// TaxCalculation is the computed tax for a line item.
type TaxCalculation struct {
	ID                 string
	Currency           string
	TaxAmountInclusive int64
	TaxAmountExclusive int64
	Jurisdictions      []string
}

// TaxTransactionParams records a committed tax transaction from a
// calculation.
type TaxTransactionParams struct {
	CalculationID string
	Reference     string
	Metadata      map[string]string
}

// TransferParams moves funds between accounts under a transfer group.
type TransferParams struct {
	AmountCents   int64
	Currency      string
	Destination   string
	TransferGroup string
	Description   string
	OnAccount     string // connected account the transfer is created on
	Metadata      map[string]string
}

// Refund is a created processor refund.
type Refund struct {
	ID string
}

// ChargeRefund is the refund recorded on a refunded charge.
type ChargeRefund struct {
	ChargeID             string
	PaymentIntentID      string
	Refunded             bool
	RefundID             string
	BalanceTransactionID string
}

// BalanceTransaction carries the availability data the refund processor
// schedules around.
type BalanceTransaction struct {
	ID          string
	Created     int64
	AvailableOn int64
	NetCents    int64
}

// Dispute is the gateway view of a processor chargeback.
type Dispute struct {
	ID              string
	PaymentIntentID string
	Reason          string
	Status          string
	EvidenceDueBy   int64
	// Net amounts (cents) of the dispute's balance transactions; negative
	// when funds were withdrawn from the platform.
	BalanceTxNetCents []int64
	// RecoupmentIntentRef is carried in dispute metadata once the seller's
	// dispute fee was recouped.
	RecoupmentIntentRef string
}
