package fiat

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/balancetransaction"
	"github.com/stripe/stripe-go/v74/charge"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/dispute"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/paymentmethod"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/transferreversal"
	taxcalculation "github.com/stripe/stripe-go/v74/tax/calculation"
	taxtransaction "github.com/stripe/stripe-go/v74/tax/transaction"
	"github.com/stripe/stripe-go/v74/transfer"
)

// StripeGateway implements Gateway on the Stripe API.
type StripeGateway struct {
	platformAccount string
}

// NewStripeGateway configures the Stripe client and returns the gateway.
// platformAccount is the account that receives tax transfers.
func NewStripeGateway(secretKey, platformAccount string) *StripeGateway {
	if secretKey == "" {
		panic("stripe secret key is required")
	}
	stripe.Key = secretKey
	return &StripeGateway{platformAccount: platformAccount}
}

func (g *StripeGateway) CreateInstallmentIntent(ctx context.Context, p InstallmentIntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(p.AmountCents),
		ApplicationFeeAmount: stripe.Int64(p.FeeCents),
		Currency:             stripe.String(string(stripe.CurrencyUSD)),
		Customer:             stripe.String(p.CustomerID),
		Description:          stripe.String(p.Description),
		OnBehalfOf:           stripe.String(p.SellerAccount),
		TransferGroup:        stripe.String(p.TransferGroup),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.SellerAccount),
		},
	}
	params.Context = ctx
	params.AddMetadata("source", SourceInstallment)
	params.AddMetadata("installment_id", p.InstallmentID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, wrap("create installment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) CreateRecoupmentCharge(ctx context.Context, p RecoupmentChargeParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Customer:      stripe.String(p.CustomerID),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Description:   stripe.String(p.Description),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("source", p.Source)
	params.AddMetadata("receipt_id", p.ReceiptID)
	if p.DisputeID != "" {
		params.AddMetadata("dispute_id", p.DisputeID)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, wrap("create recoupment charge", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, intentID, paymentMethodID string) error {
	params := &stripe.PaymentIntentParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	_, err := paymentintent.Update(intentID, params)
	return wrap("attach payment method", err)
}

func (g *StripeGateway) ConfirmIntentOffSession(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentConfirmParams{
		OffSession: stripe.Bool(true),
	}
	params.Context = ctx
	_, err := paymentintent.Confirm(intentID, params)
	return wrap("confirm payment intent", err)
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID, reason string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(reason),
	}
	params.Context = ctx
	pi, err := paymentintent.Cancel(intentID, params)
	if err != nil {
		return nil, wrap("cancel payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) IntentReceiptURL(ctx context.Context, intentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return "", wrap("retrieve intent receipt url", err)
	}
	if pi.LatestCharge == nil {
		return "", nil
	}
	return pi.LatestCharge.ReceiptURL, nil
}

func (g *StripeGateway) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := customer.Get(customerID, params)
	if err != nil {
		return "", wrap("retrieve customer", err)
	}
	if c.InvoiceSettings == nil || c.InvoiceSettings.DefaultPaymentMethod == nil {
		return "", wrap("retrieve customer", fmt.Errorf("customer %s has no default payment method", customerID))
	}
	return c.InvoiceSettings.DefaultPaymentMethod.ID, nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx
	_, err := customer.Update(customerID, params)
	return wrap("set default payment method", err)
}

func (g *StripeGateway) RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := paymentmethod.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve payment method", err)
	}
	out := &PaymentMethod{
		ID:     pm.ID,
		IsCard: pm.Type == stripe.PaymentMethodTypeCard,
	}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.CardCountry = pm.Card.Country
	}
	return out, nil
}

func (g *StripeGateway) CreateTaxCalculation(ctx context.Context, p TaxCalculationParams) (*TaxCalculation, error) {
	behavior := stripe.TaxCalculationLineItemTaxBehaviorExclusive
	if p.Inclusive {
		behavior = stripe.TaxCalculationLineItemTaxBehaviorInclusive
	}
	params := &stripe.TaxCalculationParams{
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(p.CustomerID),
		LineItems: []*stripe.TaxCalculationLineItemParams{{
			Amount:      stripe.Int64(p.AmountCents),
			Reference:   stripe.String(p.Reference),
			TaxBehavior: stripe.String(string(behavior)),
		}},
	}
	params.Context = ctx
	calc, err := taxcalculation.New(params)
	if err != nil {
		return nil, wrap("create tax calculation", err)
	}
	out := &TaxCalculation{
		ID:                 calc.ID,
		Currency:           string(calc.Currency),
		TaxAmountInclusive: calc.TaxAmountInclusive,
		TaxAmountExclusive: calc.TaxAmountExclusive,
	}
	seen := map[string]bool{}
	for _, breakdown := range calc.TaxBreakdown {
		if breakdown.TaxRateDetails == nil || breakdown.TaxRateDetails.State == "" {
			continue
		}
		if !seen[breakdown.TaxRateDetails.State] {
			seen[breakdown.TaxRateDetails.State] = true
			out.Jurisdictions = append(out.Jurisdictions, breakdown.TaxRateDetails.State)
		}
	}
	return out, nil
}

func (g *StripeGateway) CreateTaxTransaction(ctx context.Context, p TaxTransactionParams) (string, error) {
	params := &stripe.TaxTransactionCreateFromCalculationParams{
		Calculation: stripe.String(p.CalculationID),
		Reference:   stripe.String(p.Reference),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	tx, err := taxtransaction.CreateFromCalculation(params)
	if err != nil {
		return "", wrap("create tax transaction", err)
	}
	return tx.ID, nil
}

func (g *StripeGateway) ReverseTaxTransaction(ctx context.Context, originalTransaction, reference string) error {
	params := &stripe.TaxTransactionCreateReversalParams{
		OriginalTransaction: stripe.String(originalTransaction),
		Mode:                stripe.String("full"),
		Reference:           stripe.String(reference),
	}
	params.Context = ctx
	_, err := taxtransaction.CreateReversal(params)
	return wrap("reverse tax transaction", err)
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, p TransferParams) (string, error) {
	currency := p.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(p.Destination),
		TransferGroup: stripe.String(p.TransferGroup),
		Description:   stripe.String(p.Description),
	}
	params.Context = ctx
	if p.OnAccount != "" {
		params.SetStripeAccount(p.OnAccount)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	t, err := transfer.New(params)
	if err != nil {
		return "", wrap("create transfer", err)
	}
	return t.ID, nil
}

func (g *StripeGateway) TransferReversed(ctx context.Context, transferID, onAccount string) (bool, error) {
	params := &stripe.TransferParams{}
	params.Context = ctx
	if onAccount != "" {
		params.SetStripeAccount(onAccount)
	}
	t, err := transfer.Get(transferID, params)
	if err != nil {
		return false, wrap("retrieve transfer", err)
	}
	return t.Reversed, nil
}

func (g *StripeGateway) ReverseTransfer(ctx context.Context, transferID, onAccount string) error {
	params := &stripe.TransferReversalParams{
		ID: stripe.String(transferID),
	}
	params.Context = ctx
	if onAccount != "" {
		params.SetStripeAccount(onAccount)
	}
	_, err := transferreversal.New(params)
	return wrap("reverse transfer", err)
}

func (g *StripeGateway) CreateRefund(ctx context.Context, paymentIntentID, installmentID string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.AddMetadata("installment_id", installmentID)
	r, err := refund.New(params)
	if err != nil {
		return nil, wrap("create refund", err)
	}
	return &Refund{ID: r.ID}, nil
}

func (g *StripeGateway) CreatePartialRefund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	_, err := refund.New(params)
	return wrap("create partial refund", err)
}

func (g *StripeGateway) ChargeAvailableOn(ctx context.Context, chargeID string) (int64, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	params.AddExpand("balance_transaction")
	c, err := charge.Get(chargeID, params)
	if err != nil {
		return 0, wrap("retrieve charge", err)
	}
	if c.BalanceTransaction == nil {
		return 0, nil
	}
	return c.BalanceTransaction.AvailableOn, nil
}

func (g *StripeGateway) RetrieveChargeRefund(ctx context.Context, chargeID string) (*ChargeRefund, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	params.AddExpand("refunds")
	c, err := charge.Get(chargeID, params)
	if err != nil {
		return nil, wrap("retrieve charge refunds", err)
	}
	out := &ChargeRefund{
		ChargeID: c.ID,
		Refunded: c.Refunded,
	}
	if c.PaymentIntent != nil {
		out.PaymentIntentID = c.PaymentIntent.ID
	}
	if c.Refunds != nil && len(c.Refunds.Data) > 0 {
		first := c.Refunds.Data[0]
		out.RefundID = first.ID
		if first.BalanceTransaction != nil {
			out.BalanceTransactionID = first.BalanceTransaction.ID
		}
	}
	return out, nil
}

func (g *StripeGateway) RetrieveBalanceTransaction(ctx context.Context, id string) (*BalanceTransaction, error) {
	params := &stripe.BalanceTransactionParams{}
	params.Context = ctx
	bt, err := balancetransaction.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve balance transaction", err)
	}
	return &BalanceTransaction{
		ID:          bt.ID,
		Created:     bt.Created,
		AvailableOn: bt.AvailableOn,
		NetCents:    bt.Net,
	}, nil
}

// PayoutPaymentIntents walks a connected-account payout back to the platform
// payment intents whose charges it contains: balance transaction → connect
// charge → source transfer → platform charge → payment intent.
func (g *StripeGateway) PayoutPaymentIntents(ctx context.Context, payoutID, connectedAccount string) ([]string, error) {
	listParams := &stripe.BalanceTransactionListParams{
		Payout: stripe.String(payoutID),
	}
	listParams.Context = ctx
	listParams.SetStripeAccount(connectedAccount)

	var intentIDs []string
	iter := balancetransaction.List(listParams)
	for iter.Next() {
		bt := iter.BalanceTransaction()
		if bt.Source == nil || bt.ReportingCategory != "charge" {
			continue
		}
		chargeParams := &stripe.ChargeParams{}
		chargeParams.Context = ctx
		chargeParams.SetStripeAccount(connectedAccount)
		connectCharge, err := charge.Get(bt.Source.ID, chargeParams)
		if err != nil || connectCharge.SourceTransfer == nil {
			continue
		}
		transferParams := &stripe.TransferParams{}
		transferParams.Context = ctx
		t, err := transfer.Get(connectCharge.SourceTransfer.ID, transferParams)
		if err != nil || t.SourceTransaction == nil {
			continue
		}
		platformParams := &stripe.ChargeParams{}
		platformParams.Context = ctx
		platformCharge, err := charge.Get(t.SourceTransaction.ID, platformParams)
		if err != nil || platformCharge.PaymentIntent == nil {
			continue
		}
		intentIDs = append(intentIDs, platformCharge.PaymentIntent.ID)
	}
	if err := iter.Err(); err != nil {
		return nil, wrap("list payout balance transactions", err)
	}
	return intentIDs, nil
}

func (g *StripeGateway) RetrieveDispute(ctx context.Context, id string) (*Dispute, error) {
	params := &stripe.DisputeParams{}
	params.Context = ctx
	d, err := dispute.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve dispute", err)
	}
	out := &Dispute{
		ID:     d.ID,
		Reason: string(d.Reason),
		Status: string(d.Status),
	}
	if d.PaymentIntent != nil {
		out.PaymentIntentID = d.PaymentIntent.ID
	}
	if d.EvidenceDetails != nil {
		out.EvidenceDueBy = d.EvidenceDetails.DueBy
	}
	for _, bt := range d.BalanceTransactions {
		out.BalanceTxNetCents = append(out.BalanceTxNetCents, bt.Net)
	}
	out.RecoupmentIntentRef = d.Metadata["recoupment_payment_intent_id"]
	return out, nil
}

func (g *StripeGateway) RecordDisputeRecoupment(ctx context.Context, disputeID, paymentIntentID string) error {
	params := &stripe.DisputeParams{}
	params.Context = ctx
	params.AddMetadata("recoupment_payment_intent_id", paymentIntentID)
	_, err := dispute.Update(disputeID, params)
	return wrap("record dispute recoupment", err)
}

func (g *StripeGateway) SubmitDisputeEvidence(ctx context.Context, disputeID string, evidence map[string]string) error {
	params := &stripe.DisputeParams{
		Evidence: evidenceParams(evidence),
		Submit:   stripe.Bool(true),
	}
	params.Context = ctx
	_, err := dispute.Update(disputeID, params)
	return wrap("submit dispute evidence", err)
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Metadata: pi.Metadata,
	}
	if pi.LatestCharge != nil {
		out.LatestChargeID = pi.LatestCharge.ID
	}
	return out
}

// evidenceParams maps an evidence_type→value bundle onto the processor's
// typed evidence fields.
func evidenceParams(evidence map[string]string) *stripe.DisputeEvidenceParams {
	params := &stripe.DisputeEvidenceParams{}
	for evidenceType, value := range evidence {
		v := stripe.String(value)
		switch evidenceType {
		case "access_activity_log":
			params.AccessActivityLog = v
		case "billing_address":
			params.BillingAddress = v
		case "cancellation_policy":
			params.CancellationPolicy = v
		case "cancellation_policy_disclosure":
			params.CancellationPolicyDisclosure = v
		case "cancellation_rebuttal":
			params.CancellationRebuttal = v
		case "customer_communication":
			params.CustomerCommunication = v
		case "customer_email_address":
			params.CustomerEmailAddress = v
		case "customer_name":
			params.CustomerName = v
		case "customer_purchase_ip":
			params.CustomerPurchaseIP = v
		case "customer_signature":
			params.CustomerSignature = v
		case "duplicate_charge_documentation":
			params.DuplicateChargeDocumentation = v
		case "duplicate_charge_explanation":
			params.DuplicateChargeExplanation = v
		case "duplicate_charge_id":
			params.DuplicateChargeID = v
		case "product_description":
			params.ProductDescription = v
		case "receipt":
			params.Receipt = v
		case "refund_policy":
			params.RefundPolicy = v
		case "refund_policy_disclosure":
			params.RefundPolicyDisclosure = v
		case "refund_refusal_explanation":
			params.RefundRefusalExplanation = v
		case "service_date":
			params.ServiceDate = v
		case "service_documentation":
			params.ServiceDocumentation = v
		case "shipping_address":
			params.ShippingAddress = v
		case "shipping_carrier":
			params.ShippingCarrier = v
		case "shipping_date":
			params.ShippingDate = v
		case "shipping_documentation":
			params.ShippingDocumentation = v
		case "shipping_tracking_number":
			params.ShippingTrackingNumber = v
		case "uncategorized_file":
			params.UncategorizedFile = v
		case "uncategorized_text":
			params.UncategorizedText = v
		}
	}
	return params
}
