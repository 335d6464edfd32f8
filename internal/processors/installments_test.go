package processors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jobFor(t *testing.T, name string, payload interface{}) queue.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return queue.Job{ID: "job-1", Name: name, Payload: data}
}

type installmentsFixture struct {
	installments *mockInstallmentRepo
	receipts     *mockReceiptRepo
	users        *mockUserRepo
	gateway      *mockFiatGateway
	queues       *mockEnqueuer
	processor    *InstallmentsProcessor
}

func newInstallmentsFixture() *installmentsFixture {
	f := &installmentsFixture{
		installments: &mockInstallmentRepo{},
		receipts:     &mockReceiptRepo{},
		users:        &mockUserRepo{},
		gateway:      &mockFiatGateway{},
		queues:       &mockEnqueuer{},
	}
	f.processor = NewInstallmentsProcessor(
		f.installments, f.receipts, f.users, f.gateway, f.queues,
		"acct_platform", PollConfig{Initial: time.Millisecond, MaxTotal: 2 * time.Millisecond},
	)
	f.processor.sleep = func(time.Duration) {}
	return f
}

func TestCreatePaymentIntent(t *testing.T) {
	receipt := &models.Receipt{
		ID:                "rcpt-1",
		SellerID:          "seller-1",
		CustomerRef:       "cus_1",
		TotalInstallments: 3,
		Status:            models.ReceiptCreated,
	}
	installment := func() *models.Installment {
		return &models.Installment{
			ID:        "inst-1",
			Idx:       1,
			ReceiptID: "rcpt-1",
			Status:    models.InstallmentCreated,
			Amount:    100.30,
			Fee:       3.21,
			Net:       97.09,
		}
	}

	t.Run("opens the intent and schedules confirmation", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := installment()
		f.installments.On("FindByID", "inst-1").Return(inst, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(receipt, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", StripeID: "acct_seller"}, nil)
		f.gateway.On("CreateInstallmentIntent", mock.Anything, fiat.InstallmentIntentParams{
			TransferGroup: "receipt_tx_rcpt-1",
			CustomerID:    "cus_1",
			AmountCents:   10030,
			FeeCents:      321,
			SellerAccount: "acct_seller",
			Description:   "Installment 2 of 3 for receipt rcpt-1",
			InstallmentID: "inst-1",
		}).Return(&fiat.PaymentIntent{ID: "pi_1"}, nil)
		f.installments.On("Save", inst).Return(nil)
		f.queues.On("Enqueue", mock.Anything, queue.Installments, JobConfirmPaymentIntent,
			InstallmentPayload{InstallmentID: "inst-1"}, time.Duration(0)).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobCreatePaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		assert.Equal(t, "pi_1", inst.PaymentIntentRef)
		assert.Equal(t, models.InstallmentPaymentScheduled, inst.Status)
		f.queues.AssertExpectations(t)
	})

	t.Run("canceled installment terminates the job", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := installment()
		inst.Status = models.InstallmentCanceled
		f.installments.On("FindByID", "inst-1").Return(inst, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobCreatePaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeCancel, result.Outcome)
		f.gateway.AssertNotCalled(t, "CreateInstallmentIntent", mock.Anything, mock.Anything)
	})

	t.Run("redelivery with an existing intent is a no-op", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := installment()
		inst.PaymentIntentRef = "pi_existing"
		f.installments.On("FindByID", "inst-1").Return(inst, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobCreatePaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.gateway.AssertNotCalled(t, "CreateInstallmentIntent", mock.Anything, mock.Anything)
		f.installments.AssertNotCalled(t, "Save", mock.Anything)
	})
}

func TestConfirmPaymentIntentFailureMarksInstallmentFailed(t *testing.T) {
	f := newInstallmentsFixture()
	inst := &models.Installment{
		ID:               "inst-1",
		ReceiptID:        "rcpt-1",
		Status:           models.InstallmentPaymentScheduled,
		PaymentIntentRef: "pi_1",
	}
	f.installments.On("FindByID", "inst-1").Return(inst, nil)
	f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", CustomerRef: "cus_1", Status: models.ReceiptCreated}, nil)
	f.gateway.On("DefaultPaymentMethod", mock.Anything, "cus_1").Return("pm_1", nil)
	f.gateway.On("AttachPaymentMethod", mock.Anything, "pi_1", "pm_1").Return(nil)
	f.gateway.On("ConfirmIntentOffSession", mock.Anything, "pi_1").Return(errors.New("card_declined"))
	f.installments.On("Save", inst).Return(nil)
	f.installments.On("ListByReceipt", "rcpt-1").Return([]models.Installment{*inst}, nil)
	f.receipts.On("Updates", "rcpt-1", map[string]interface{}{"status": models.ReceiptFailed}).Return(nil)

	result := f.processor.Handle(context.Background(), jobFor(t, JobConfirmPaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

	require.Equal(t, queue.OutcomeRetry, result.Outcome)
	assert.Equal(t, models.InstallmentFailed, inst.Status)
	assert.Equal(t, 1, inst.FailedTimes)
	assert.Equal(t, "card_declined", inst.LastFailureReason)
	require.NotNil(t, inst.LastFailureAt)
	f.receipts.AssertExpectations(t)
}

func TestProcessSucceededPaymentIntent(t *testing.T) {
	t.Run("marks paid in and stores the receipt url", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := &models.Installment{
			ID:               "inst-1",
			ReceiptID:        "rcpt-1",
			Status:           models.InstallmentPaymentScheduled,
			PaymentIntentRef: "pi_1",
		}
		f.installments.On("FindByID", "inst-1").Return(inst, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", Status: models.ReceiptCreated}, nil)
		f.installments.On("Save", inst).Return(nil)
		f.installments.On("ListByReceipt", "rcpt-1").Return([]models.Installment{{Status: models.InstallmentPaidIn}}, nil)
		f.receipts.On("Updates", "rcpt-1", map[string]interface{}{"status": models.ReceiptPaid}).Return(nil)
		f.gateway.On("IntentReceiptURL", mock.Anything, "pi_1").Return("https://pay.example/r/1", nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessSucceededPaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		assert.Equal(t, models.InstallmentPaidIn, inst.Status)
		assert.Equal(t, "https://pay.example/r/1", inst.ReceiptURL)
	})

	t.Run("already settled installment is a no-op", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := &models.Installment{ID: "inst-1", ReceiptID: "rcpt-1", Status: models.InstallmentPaidOut}
		f.installments.On("FindByID", "inst-1").Return(inst, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessSucceededPaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.installments.AssertNotCalled(t, "Save", mock.Anything)
	})

	t.Run("settles taxes before marking paid in", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := &models.Installment{
			ID:               "inst-1",
			ReceiptID:        "rcpt-1",
			Status:           models.InstallmentPaymentScheduled,
			PaymentIntentRef: "pi_1",
			Amount:           50,
		}
		f.installments.On("FindByID", "inst-1").Return(inst, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{
			ID: "rcpt-1", SellerID: "seller-1", CustomerRef: "cus_1",
			TaxAmount: 4.13, Status: models.ReceiptCreated,
		}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", StripeID: "acct_seller"}, nil)
		f.gateway.On("CreateTaxCalculation", mock.Anything, fiat.TaxCalculationParams{
			CustomerID:  "cus_1",
			Reference:   "inst-1",
			AmountCents: 5000,
			Inclusive:   true,
		}).Return(&fiat.TaxCalculation{
			ID:                 "taxcalc_1",
			Currency:           "usd",
			TaxAmountInclusive: 413,
			Jurisdictions:      []string{"CA", "NY"},
		}, nil)
		f.gateway.On("CreateTaxTransaction", mock.Anything, mock.MatchedBy(func(p fiat.TaxTransactionParams) bool {
			return p.CalculationID == "taxcalc_1" &&
				p.Reference == "installment(inst-1)" &&
				p.Metadata["tax_jurisdictions"] == "CA|NY" &&
				p.Metadata["tax_source"] == "marketplace"
		})).Return("taxtxn_1", nil)
		f.gateway.On("CreateTransfer", mock.Anything, mock.MatchedBy(func(p fiat.TransferParams) bool {
			return p.AmountCents == 413 &&
				p.Destination == "acct_platform" &&
				p.OnAccount == "acct_seller" &&
				p.TransferGroup == "receipt_tx_rcpt-1"
		})).Return("tr_1", nil)
		f.installments.On("Save", inst).Return(nil)
		f.installments.On("ListByReceipt", "rcpt-1").Return([]models.Installment{{Status: models.InstallmentPaidIn}}, nil)
		f.receipts.On("Updates", "rcpt-1", mock.Anything).Return(nil)
		f.gateway.On("IntentReceiptURL", mock.Anything, "pi_1").Return("", errors.New("not ready"))

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessSucceededPaymentIntent, InstallmentPayload{InstallmentID: "inst-1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		assert.Equal(t, "taxtxn_1", inst.TaxTransactionRef)
		assert.Equal(t, "tr_1", inst.TaxTransferRef)
		f.gateway.AssertExpectations(t)
	})
}

func TestProcessPaidOutPaymentIntent(t *testing.T) {
	t.Run("marks paid out and hands off to the treasury queue", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := &models.Installment{ID: "inst-1", ReceiptID: "rcpt-1", Status: models.InstallmentPaidIn}
		f.installments.On("FindByID", "inst-1").Return(inst, nil)
		f.installments.On("Save", inst).Return(nil)
		f.queues.On("Enqueue", mock.Anything, queue.Treasury, JobConfirm,
			InstallmentPayload{InstallmentID: "inst-1"}, time.Duration(0)).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessPaidOutPaymentIntent,
			PaidOutPayload{InstallmentID: "inst-1", PayoutRef: "po_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		assert.Equal(t, models.InstallmentPaidOut, inst.Status)
		assert.Equal(t, "po_1", inst.PayoutRef)
		f.queues.AssertExpectations(t)
	})

	t.Run("already paid out redelivery is a no-op", func(t *testing.T) {
		f := newInstallmentsFixture()
		inst := &models.Installment{ID: "inst-1", ReceiptID: "rcpt-1", Status: models.InstallmentPaidOut, PayoutRef: "po_1"}
		f.installments.On("FindByID", "inst-1").Return(inst, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessPaidOutPaymentIntent,
			PaidOutPayload{InstallmentID: "inst-1", PayoutRef: "po_1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.installments.AssertNotCalled(t, "Save", mock.Anything)
		f.queues.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUnknownInstallmentsJobIsIgnored(t *testing.T) {
	f := newInstallmentsFixture()
	result := f.processor.Handle(context.Background(), jobFor(t, "noSuchJob", struct{}{}))
	assert.Equal(t, queue.OutcomeIgnore, result.Outcome)
}
