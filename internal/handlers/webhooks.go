package handlers

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"splitpay/internal/gateways/banking"
	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/processors"
	"splitpay/internal/queue"
	"splitpay/internal/repositories"
	"splitpay/internal/services/receipts"

	"github.com/gofiber/fiber/v2"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// WebhookHandler ingests provider events and turns them into queue jobs.
// Verified-but-unsupported events and downstream failures both answer 200 so
// the provider does not redeliver what a queue retry already covers; only
// signature and parse failures are 4xx.
type WebhookHandler struct {
	receipts     *receipts.Service
	queues       processors.Enqueuer
	users        repositories.UserRepository
	installments repositories.InstallmentRepository
	receiptRepo  repositories.ReceiptRepository
	gateway      fiat.Gateway
	verifier     *banking.WebhookVerifier

	platformSecret string
	connectSecret  string
}

func NewWebhookHandler(
	receiptsService *receipts.Service,
	queues processors.Enqueuer,
	users repositories.UserRepository,
	installments repositories.InstallmentRepository,
	receiptRepo repositories.ReceiptRepository,
	gateway fiat.Gateway,
	verifier *banking.WebhookVerifier,
	platformSecret, connectSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		receipts:       receiptsService,
		queues:         queues,
		users:          users,
		installments:   installments,
		receiptRepo:    receiptRepo,
		gateway:        gateway,
		verifier:       verifier,
		platformSecret: platformSecret,
		connectSecret:  connectSecret,
	}
}

// Platform handles events from the platform Stripe account.
func (h *WebhookHandler) Platform(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), h.platformSecret)
	if err != nil {
		log.Printf("platform webhook: invalid signature: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}
	log.Printf("P------------ %s %s", event.Type, event.ID)

	switch event.Type {
	case "setup_intent.succeeded":
		h.handleSetupIntentSucceeded(c, event.Data.Raw)
	case "payment_intent.succeeded":
		h.handlePaymentIntentSucceeded(c, event.Data.Raw)
	case "charge.refunded":
		h.handleChargeRefunded(c, event.Data.Raw)
	case "charge.dispute.created":
		h.enqueueDisputeJob(c, event.Data.Raw, processors.JobProcessDisputeCreated)
	case "charge.dispute.updated":
		h.enqueueDisputeJob(c, event.Data.Raw, processors.JobProcessDisputeUpdated)
	case "charge.dispute.closed":
		h.enqueueDisputeJob(c, event.Data.Raw, processors.JobProcessDisputeClosed)
	case "charge.dispute.funds_reinstated":
		h.enqueueDisputeJob(c, event.Data.Raw, processors.JobProcessDisputeFundsReinstated)
	case "charge.dispute.funds_withdrawn":
		h.enqueueDisputeJob(c, event.Data.Raw, processors.JobProcessDisputeFundsWithdrawn)
	case "radar.early_fraud_warning.created":
		h.handleEarlyFraudWarning(event.Data.Raw)
	default:
		log.Printf("platform webhook: unhandled event type %s", event.Type)
	}
	return c.SendStatus(fiber.StatusOK)
}

// handleSetupIntentSucceeded branches on the metadata owner: a seller setup
// saves the card used for recoupment charges, a buyer setup drives checkout.
func (h *WebhookHandler) handleSetupIntentSucceeded(c *fiber.Ctx, raw json.RawMessage) {
	var intent stripe.SetupIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		log.Printf("platform webhook: parse setup intent: %v", err)
		return
	}
	if intent.PaymentMethod == nil {
		log.Printf("platform webhook: setup intent %s has no payment method", intent.ID)
		return
	}
	ctx := c.UserContext()

	switch intent.Metadata["owner"] {
	case "seller":
		user, err := h.users.FindByID(intent.Metadata["user_id"])
		if err != nil {
			log.Printf("platform webhook: seller %s not found", intent.Metadata["user_id"])
			return
		}
		method, err := h.gateway.RetrievePaymentMethod(ctx, intent.PaymentMethod.ID)
		if err != nil || !method.IsCard {
			log.Printf("platform webhook: setup intent %s did not attach a card", intent.ID)
			return
		}
		user.PaymentMethodID = method.ID
		if err := h.users.Save(user); err != nil {
			log.Printf("platform webhook: save seller payment method: %v", err)
			return
		}
		log.Printf("payment method for seller %s updated", user.ID)

	case "buyer":
		amount, err := strconv.ParseFloat(intent.Metadata["amount"], 64)
		if err != nil {
			log.Printf("platform webhook: setup intent %s carries a bad amount: %v", intent.ID, err)
			return
		}
		installments, _ := strconv.Atoi(intent.Metadata["installments"])
		intervalMs, _ := strconv.ParseInt(intent.Metadata["interval"], 10, 64)
		var customerRef string
		if intent.Customer != nil {
			customerRef = intent.Customer.ID
		}
		_, err = h.receipts.CreateFromSetup(ctx, receipts.SetupParams{
			SellerID:           intent.Metadata["user_id"],
			BuyerID:            intent.Metadata["buyer_id"],
			CustomerRef:        customerRef,
			SetupIntentRef:     intent.ID,
			PaymentMethodID:    intent.PaymentMethod.ID,
			BuyerWalletAddress: intent.Metadata["buyer_wallet_address"],
			Amount:             amount,
			Installments:       installments,
			Interval:           time.Duration(intervalMs) * time.Millisecond,
			ProcessTaxes:       intent.Metadata["processTaxes"] == "true",
		})
		if err != nil {
			log.Printf("platform webhook: checkout from setup intent %s: %v", intent.ID, err)
		}
	}
}

// handlePaymentIntentSucceeded routes on the metadata source tag each intent
// was created with.
func (h *WebhookHandler) handlePaymentIntentSucceeded(c *fiber.Ctx, raw json.RawMessage) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		log.Printf("platform webhook: parse payment intent: %v", err)
		return
	}
	ctx := c.UserContext()

	var err error
	switch intent.Metadata["source"] {
	case fiat.SourceInstallment:
		err = h.queues.Enqueue(ctx, queue.Installments, processors.JobProcessSucceededPaymentIntent,
			processors.InstallmentPayload{InstallmentID: intent.Metadata["installment_id"]}, 0)
	case fiat.SourceRefund:
		err = h.queues.Enqueue(ctx, queue.Refunds, processors.JobProcessSucceededPaymentIntent,
			processors.PaymentIntentPayload{PaymentIntentRef: intent.ID}, 0)
	case fiat.SourceDispute:
		err = h.queues.Enqueue(ctx, queue.Disputes, processors.JobProcessSucceededPaymentIntent,
			processors.DisputeRecoupmentPayload{
				DisputeRef:       intent.Metadata["dispute_id"],
				PaymentIntentRef: intent.ID,
			}, 0)
	default:
		log.Printf("platform webhook: payment intent %s has no routable source", intent.ID)
	}
	if err != nil {
		log.Printf("platform webhook: enqueue for payment intent %s: %v", intent.ID, err)
	}
}

// handleChargeRefunded only reacts to installment charges; recoupment charge
// refunds are operator actions outside the settlement flow.
func (h *WebhookHandler) handleChargeRefunded(c *fiber.Ctx, raw json.RawMessage) {
	var charge stripe.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		log.Printf("platform webhook: parse charge: %v", err)
		return
	}
	if charge.Metadata["source"] != fiat.SourceInstallment {
		return
	}
	err := h.queues.Enqueue(c.UserContext(), queue.Refunds, processors.JobProcessChargeRefunded,
		processors.ChargePayload{ChargeRef: charge.ID}, 0)
	if err != nil {
		log.Printf("platform webhook: enqueue charge refunded %s: %v", charge.ID, err)
	}
}

func (h *WebhookHandler) enqueueDisputeJob(c *fiber.Ctx, raw json.RawMessage, jobName string) {
	var dispute stripe.Dispute
	if err := json.Unmarshal(raw, &dispute); err != nil {
		log.Printf("platform webhook: parse dispute: %v", err)
		return
	}
	err := h.queues.Enqueue(c.UserContext(), queue.Disputes, jobName,
		processors.DisputePayload{DisputeRef: dispute.ID}, 0)
	if err != nil {
		log.Printf("platform webhook: enqueue %s for dispute %s: %v", jobName, dispute.ID, err)
	}
}

// handleEarlyFraudWarning flags the receipt as refund-requested so the seller
// can refund before a dispute lands.
func (h *WebhookHandler) handleEarlyFraudWarning(raw json.RawMessage) {
	var warning stripe.RadarEarlyFraudWarning
	if err := json.Unmarshal(raw, &warning); err != nil {
		log.Printf("platform webhook: parse fraud warning: %v", err)
		return
	}
	if warning.PaymentIntent == nil {
		return
	}
	installment, err := h.installments.FindByPaymentIntentRef(warning.PaymentIntent.ID)
	if err != nil {
		log.Printf("platform webhook: no installment for fraud-warned intent %s", warning.PaymentIntent.ID)
		return
	}
	err = h.receiptRepo.Updates(installment.ReceiptID, map[string]interface{}{
		"refund_status": models.RefundRequested,
	})
	if err != nil {
		log.Printf("platform webhook: flag receipt %s for refund: %v", installment.ReceiptID, err)
	}
}

// Connect handles events from sellers' connected Stripe accounts.
func (h *WebhookHandler) Connect(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), h.connectSecret)
	if err != nil {
		log.Printf("connect webhook: invalid signature: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}
	log.Printf("C------------ %s %s %s", event.Type, event.Account, event.ID)

	switch event.Type {
	case "account.updated":
		h.handleAccountUpdated(event.Data.Raw)
	case "payout.paid":
		h.handlePayoutPaid(c, event.Data.Raw, event.Account)
	default:
		log.Printf("connect webhook: unhandled event type %s", event.Type)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) handleAccountUpdated(raw json.RawMessage) {
	var account stripe.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		log.Printf("connect webhook: parse account: %v", err)
		return
	}
	user, err := h.users.FindByStripeID(account.ID)
	if err != nil {
		return
	}
	user.StripeOnboarded = account.Requirements == nil || len(account.Requirements.CurrentlyDue) == 0
	if err := h.users.Save(user); err != nil {
		log.Printf("connect webhook: save onboarding state for %s: %v", user.ID, err)
		return
	}
	state := "no longer"
	if user.StripeOnboarded {
		state = "now"
	}
	log.Printf("user %s is %s Stripe onboarded", user.Email, state)
}

// handlePayoutPaid walks the payout's balance transactions back to platform
// payment intents and settles every paid-in installment they charged.
func (h *WebhookHandler) handlePayoutPaid(c *fiber.Ctx, raw json.RawMessage, connectedAccount string) {
	var payout stripe.Payout
	if err := json.Unmarshal(raw, &payout); err != nil {
		log.Printf("connect webhook: parse payout: %v", err)
		return
	}
	ctx := c.UserContext()
	intentRefs, err := h.gateway.PayoutPaymentIntents(ctx, payout.ID, connectedAccount)
	if err != nil {
		log.Printf("connect webhook: resolve payout %s: %v", payout.ID, err)
		return
	}
	for _, ref := range intentRefs {
		installment, err := h.installments.FindByPaymentIntentRef(ref)
		if err != nil || installment.Status != models.InstallmentPaidIn {
			continue
		}
		err = h.queues.Enqueue(ctx, queue.Installments, processors.JobProcessPaidOutPaymentIntent,
			processors.PaidOutPayload{InstallmentID: installment.ID, PayoutRef: payout.ID}, 0)
		if err != nil {
			log.Printf("connect webhook: enqueue paid-out installment %s: %v", installment.ID, err)
		}
	}
}

// Banking handles events from the crypto-banking provider.
func (h *WebhookHandler) Banking(c *fiber.Ctx) error {
	body := c.Body()
	if err := h.verifier.Verify(body, c.Get("X-Webhook-Signature")); err != nil {
		log.Printf("banking webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var event banking.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}
	log.Printf("B------------ %s %s %s", event.EventType, event.EventID, event.EventObject.ID)

	switch event.EventType {
	case "customer.updated", "customer.updated.status_transitioned":
		user, err := h.users.FindByBankingID(event.EventObject.ID)
		if err != nil {
			break
		}
		user.BankingOnboarded = event.EventObject.Status == "active"
		if err := h.users.Save(user); err != nil {
			log.Printf("banking webhook: save onboarding state for %s: %v", user.ID, err)
			break
		}
		state := "no longer"
		if user.BankingOnboarded {
			state = "now"
		}
		log.Printf("user %s is %s banking onboarded", user.Email, state)
	case "transfer.updated.status_transitioned":
		if event.EventObject.State == "payment_processed" {
			log.Printf("banking transfer processed: customer=%s amount=%s",
				event.EventObject.OnBehalfOf, event.EventObject.Amount)
		}
	case "virtual_account.activity.created":
		if event.EventObject.Type == "payment_processed" {
			log.Printf("banking on-ramp processed: customer=%s amount=%s tx=%s",
				event.EventObject.CustomerID, event.EventObject.Amount, event.EventObject.DestinationTxHash)
		}
	}
	return c.SendStatus(fiber.StatusOK)
}
