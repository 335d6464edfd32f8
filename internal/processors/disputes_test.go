package processors

import (
	"context"
	"testing"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/models"
	"splitpay/internal/money"
	"splitpay/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type disputesFixture struct {
	disputes     *mockDisputeRepo
	installments *mockInstallmentRepo
	receipts     *mockReceiptRepo
	users        *mockUserRepo
	evidences    *mockEvidenceRepo
	gateway      *mockFiatGateway
	processor    *DisputesProcessor
}

func newDisputesFixture() *disputesFixture {
	f := &disputesFixture{
		disputes:     &mockDisputeRepo{},
		installments: &mockInstallmentRepo{},
		receipts:     &mockReceiptRepo{},
		users:        &mockUserRepo{},
		evidences:    &mockEvidenceRepo{},
		gateway:      &mockFiatGateway{},
	}
	f.processor = NewDisputesProcessor(
		f.disputes, f.installments, f.receipts, f.users, f.evidences, f.gateway, "US", money.ExtraRate,
	)
	return f
}

func TestProcessDisputeCreated(t *testing.T) {
	stripeDispute := &fiat.Dispute{
		ID:              "dp_1",
		PaymentIntentID: "pi_1",
		Reason:          "duplicate",
		Status:          models.DisputeNeedsResponse,
		EvidenceDueBy:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}

	t.Run("records the dispute and skips evidence types already requested", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(stripeDispute, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(nil, gorm.ErrRecordNotFound)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.disputes.On("ListByInstallment", "inst-1").Return([]models.Dispute{}, nil)
		f.disputes.On("ListByReceipt", "rcpt-1").Return([]models.Dispute{{
			ID:     "disp-0",
			Status: models.DisputeNeedsResponse,
			Evidences: []models.Evidence{
				{EvidenceType: "customer_communication"},
				{EvidenceType: "uncategorized_text"},
			},
		}}, nil)
		f.disputes.On("Create", mock.Anything).Return(nil)
		var created []models.Evidence
		f.evidences.On("CreateBatch", mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(0).([]models.Evidence)
		}).Return(nil)
		f.disputes.On("LinkEvidences", mock.Anything, mock.Anything).Return(nil)
		f.receipts.On("Updates", "rcpt-1", map[string]interface{}{"dispute_status": models.DisputeAggOpen}).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeCreated,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		// "duplicate" needs seven types; two already exist on the receipt.
		require.Len(t, created, 5)
		types := make(map[string]bool)
		for _, evidence := range created {
			types[evidence.EvidenceType] = true
		}
		assert.False(t, types["customer_communication"])
		assert.False(t, types["uncategorized_text"])
		assert.True(t, types["duplicate_charge_id"])
	})

	t.Run("flags the second dispute on an installment as a duplicate", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(stripeDispute, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(nil, gorm.ErrRecordNotFound)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.disputes.On("ListByInstallment", "inst-1").Return([]models.Dispute{{ID: "disp-0"}}, nil)
		f.disputes.On("ListByReceipt", "rcpt-1").Return([]models.Dispute{}, nil)
		var row *models.Dispute
		f.disputes.On("Create", mock.Anything).Run(func(args mock.Arguments) {
			row = args.Get(0).(*models.Dispute)
		}).Return(nil)
		f.evidences.On("CreateBatch", mock.Anything).Return(nil)
		f.disputes.On("LinkEvidences", mock.Anything, mock.Anything).Return(nil)
		f.receipts.On("Updates", "rcpt-1", mock.Anything).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeCreated,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		require.NotNil(t, row)
		require.NotNil(t, row.DuplicateOf)
		assert.Equal(t, "disp-0", *row.DuplicateOf)
	})

	t.Run("redelivered creation event is a no-op", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(stripeDispute, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(&models.Dispute{ID: "disp-1", StripeDisputeRef: "dp_1"}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeCreated,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.disputes.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("concurrent insert on the unique reference is a no-op", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(stripeDispute, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(nil, gorm.ErrRecordNotFound)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.disputes.On("ListByInstallment", "inst-1").Return([]models.Dispute{}, nil)
		f.disputes.On("ListByReceipt", "rcpt-1").Return([]models.Dispute{}, nil)
		f.disputes.On("Create", mock.Anything).Return(gorm.ErrDuplicatedKey)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeCreated,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.evidences.AssertNotCalled(t, "CreateBatch", mock.Anything)
	})
}

func TestProcessDisputeClosed(t *testing.T) {
	t.Run("a loss unwinds the installment's taxes before saving", func(t *testing.T) {
		f := newDisputesFixture()
		row := &models.Dispute{ID: "disp-1", StripeDisputeRef: "dp_1", InstallmentID: "inst-1", Status: models.DisputeUnderReview}
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID: "dp_1", Status: models.DisputeLost,
		}, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(row, nil)
		f.installments.On("FindByID", "inst-1").Return(&models.Installment{
			ID: "inst-1", ReceiptID: "rcpt-1", TaxTransferRef: "tr_1", TaxTransactionRef: "taxtxn_1",
		}, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", SellerID: "seller-1"}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", StripeID: "acct_seller"}, nil)
		f.gateway.On("TransferReversed", mock.Anything, "tr_1", "acct_seller").Return(false, nil)
		f.gateway.On("ReverseTransfer", mock.Anything, "tr_1", "acct_seller").Return(nil)
		f.gateway.On("ReverseTaxTransaction", mock.Anything, "taxtxn_1",
			"receipt(rcpt-1),installment(inst-1,tax_transaction(taxtxn_1))").Return(nil)
		f.disputes.On("Save", row).Return(nil)
		f.disputes.On("ListByReceipt", "rcpt-1").Return([]models.Dispute{*row}, nil)
		f.receipts.On("Updates", "rcpt-1", map[string]interface{}{"dispute_status": models.DisputeAggLost}).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeClosed,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		assert.Equal(t, models.DisputeLost, row.Status)
		f.gateway.AssertNumberOfCalls(t, "ReverseTransfer", 1)
	})

	t.Run("an already reversed transfer is not reversed again", func(t *testing.T) {
		f := newDisputesFixture()
		row := &models.Dispute{ID: "disp-1", StripeDisputeRef: "dp_1", InstallmentID: "inst-1", Status: models.DisputeNeedsResponse}
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID: "dp_1", Status: models.DisputeLost,
		}, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(row, nil)
		f.installments.On("FindByID", "inst-1").Return(&models.Installment{
			ID: "inst-1", ReceiptID: "rcpt-1", TaxTransferRef: "tr_1",
		}, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", SellerID: "seller-1"}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", StripeID: "acct_seller"}, nil)
		f.gateway.On("TransferReversed", mock.Anything, "tr_1", "acct_seller").Return(true, nil)
		f.disputes.On("Save", row).Return(nil)
		f.disputes.On("ListByReceipt", "rcpt-1").Return([]models.Dispute{*row}, nil)
		f.receipts.On("Updates", "rcpt-1", mock.Anything).Return(nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeClosed,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		f.gateway.AssertNotCalled(t, "ReverseTransfer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("an already closed dispute is a no-op", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID: "dp_1", Status: models.DisputeLost,
		}, nil)
		f.disputes.On("FindByStripeRef", "dp_1").Return(&models.Dispute{
			ID: "disp-1", StripeDisputeRef: "dp_1", InstallmentID: "inst-1", Status: models.DisputeWon,
		}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeClosed,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.disputes.AssertNotCalled(t, "Save", mock.Anything)
		f.gateway.AssertNotCalled(t, "TransferReversed", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProcessDisputeFundsReinstated(t *testing.T) {
	f := newDisputesFixture()
	f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
		ID:                  "dp_1",
		RecoupmentIntentRef: "pi_rec",
		BalanceTxNetCents:   []int64{-1500, 1500, 25},
	}, nil)
	// Only positive movements are refunded back to the seller.
	f.gateway.On("CreatePartialRefund", mock.Anything, "pi_rec", int64(1525)).Return(nil)

	result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsReinstated,
		DisputePayload{DisputeRef: "dp_1"}))

	require.Equal(t, queue.OutcomeDone, result.Outcome)
	f.gateway.AssertExpectations(t)
}

func TestProcessDisputeFundsWithdrawn(t *testing.T) {
	t.Run("charges the seller the grossed up dispute fee", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID:                "dp_1",
			PaymentIntentID:   "pi_1",
			BalanceTxNetCents: []int64{-1500},
		}, nil)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", SellerID: "seller-1"}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", PaymentMethodID: "pm_1"}, nil)
		f.gateway.On("RetrievePaymentMethod", mock.Anything, "pm_1").Return(&fiat.PaymentMethod{
			ID: "pm_1", CustomerID: "cus_seller", IsCard: true, CardCountry: "US",
		}, nil)
		// round2((15.00 + 0.30) / (1 - 0.029)) = 15.76
		f.gateway.On("CreateRecoupmentCharge", mock.Anything, mock.MatchedBy(func(p fiat.RecoupmentChargeParams) bool {
			return p.AmountCents == 1576 &&
				p.CustomerID == "cus_seller" &&
				p.PaymentMethodID == "pm_1" &&
				p.Source == fiat.SourceDispute &&
				p.DisputeID == "dp_1"
		})).Return(&fiat.PaymentIntent{ID: "pi_rec"}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsWithdrawn,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		f.gateway.AssertExpectations(t)
	})

	t.Run("a foreign card pays the extra processing rate", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID:                "dp_1",
			PaymentIntentID:   "pi_1",
			BalanceTxNetCents: []int64{-1500},
		}, nil)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", SellerID: "seller-1"}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", PaymentMethodID: "pm_1"}, nil)
		f.gateway.On("RetrievePaymentMethod", mock.Anything, "pm_1").Return(&fiat.PaymentMethod{
			ID: "pm_1", CustomerID: "cus_seller", IsCard: true, CardCountry: "FR",
		}, nil)
		// round2((15.00 + 0.30) / (1 - 0.029 - 0.015)) = 16.00
		f.gateway.On("CreateRecoupmentCharge", mock.Anything, mock.MatchedBy(func(p fiat.RecoupmentChargeParams) bool {
			return p.AmountCents == 1600
		})).Return(&fiat.PaymentIntent{ID: "pi_rec"}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsWithdrawn,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		f.gateway.AssertExpectations(t)
	})

	t.Run("the configured extra rate drives the gross up", func(t *testing.T) {
		f := newDisputesFixture()
		f.processor = NewDisputesProcessor(
			f.disputes, f.installments, f.receipts, f.users, f.evidences, f.gateway, "US", 0.03,
		)
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID:                "dp_1",
			PaymentIntentID:   "pi_1",
			BalanceTxNetCents: []int64{-1500},
		}, nil)
		f.installments.On("FindByPaymentIntentRef", "pi_1").Return(&models.Installment{ID: "inst-1", ReceiptID: "rcpt-1"}, nil)
		f.receipts.On("FindByID", "rcpt-1").Return(&models.Receipt{ID: "rcpt-1", SellerID: "seller-1"}, nil)
		f.users.On("FindByID", "seller-1").Return(&models.User{ID: "seller-1", PaymentMethodID: "pm_1"}, nil)
		f.gateway.On("RetrievePaymentMethod", mock.Anything, "pm_1").Return(&fiat.PaymentMethod{
			ID: "pm_1", CustomerID: "cus_seller", IsCard: true, CardCountry: "FR",
		}, nil)
		// round2((15.00 + 0.30) / (1 - 0.029 - 0.03)) = 16.26
		f.gateway.On("CreateRecoupmentCharge", mock.Anything, mock.MatchedBy(func(p fiat.RecoupmentChargeParams) bool {
			return p.AmountCents == 1626
		})).Return(&fiat.PaymentIntent{ID: "pi_rec"}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsWithdrawn,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		f.gateway.AssertExpectations(t)
	})

	t.Run("an already recouped dispute is a no-op", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID:                  "dp_1",
			RecoupmentIntentRef: "pi_rec",
			BalanceTxNetCents:   []int64{-1500},
		}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsWithdrawn,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeIgnore, result.Outcome)
		f.gateway.AssertNotCalled(t, "CreateRecoupmentCharge", mock.Anything, mock.Anything)
	})

	t.Run("no net withdrawal means nothing to recoup", func(t *testing.T) {
		f := newDisputesFixture()
		f.gateway.On("RetrieveDispute", mock.Anything, "dp_1").Return(&fiat.Dispute{
			ID:                "dp_1",
			BalanceTxNetCents: []int64{-1500, 1500},
		}, nil)

		result := f.processor.Handle(context.Background(), jobFor(t, JobProcessDisputeFundsWithdrawn,
			DisputePayload{DisputeRef: "dp_1"}))

		require.Equal(t, queue.OutcomeDone, result.Outcome)
		f.gateway.AssertNotCalled(t, "CreateRecoupmentCharge", mock.Anything, mock.Anything)
	})
}

func TestDisputeRecoupmentSucceeded(t *testing.T) {
	f := newDisputesFixture()
	row := &models.Dispute{ID: "disp-1", StripeDisputeRef: "dp_1"}
	f.gateway.On("RecordDisputeRecoupment", mock.Anything, "dp_1", "pi_rec").Return(nil)
	f.disputes.On("FindByStripeRef", "dp_1").Return(row, nil)
	f.disputes.On("Save", row).Return(nil)

	result := f.processor.Handle(context.Background(), jobFor(t, JobProcessSucceededPaymentIntent,
		DisputeRecoupmentPayload{DisputeRef: "dp_1", PaymentIntentRef: "pi_rec"}))

	require.Equal(t, queue.OutcomeDone, result.Outcome)
	assert.True(t, row.FeePaid)
	assert.Equal(t, "pi_rec", row.RecoupmentIntentRef)
}
