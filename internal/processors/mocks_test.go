package processors

import (
	"context"
	"time"

	"splitpay/internal/gateways/fiat"
	"splitpay/internal/gateways/treasury"
	"splitpay/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, queueName, jobName string, payload interface{}, delay time.Duration) error {
	args := m.Called(ctx, queueName, jobName, payload, delay)
	return args.Error(0)
}

type mockInstallmentRepo struct {
	mock.Mock
}

func (m *mockInstallmentRepo) Create(installment *models.Installment) error {
	return m.Called(installment).Error(0)
}

func (m *mockInstallmentRepo) FindByID(id string) (*models.Installment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installment), args.Error(1)
}

func (m *mockInstallmentRepo) FindByIDWithReceipt(id string) (*models.Installment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installment), args.Error(1)
}

func (m *mockInstallmentRepo) FindByPaymentIntentRef(ref string) (*models.Installment, error) {
	args := m.Called(ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installment), args.Error(1)
}

func (m *mockInstallmentRepo) ListByReceipt(receiptID string) ([]models.Installment, error) {
	args := m.Called(receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *mockInstallmentRepo) Save(installment *models.Installment) error {
	return m.Called(installment).Error(0)
}

type mockReceiptRepo struct {
	mock.Mock
}

func (m *mockReceiptRepo) Create(receipt *models.Receipt) error {
	return m.Called(receipt).Error(0)
}

func (m *mockReceiptRepo) FindByID(id string) (*models.Receipt, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

func (m *mockReceiptRepo) FindByIDWithInstallments(id string) (*models.Receipt, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

func (m *mockReceiptRepo) FindByIDWithRefunds(id string) (*models.Receipt, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

func (m *mockReceiptRepo) ListBySeller(sellerID string) ([]models.Receipt, error) {
	args := m.Called(sellerID)
	return nil, args.Error(1)
}

func (m *mockReceiptRepo) ListByBuyer(buyerID string) ([]models.Receipt, error) {
	args := m.Called(buyerID)
	return nil, args.Error(1)
}

func (m *mockReceiptRepo) Save(receipt *models.Receipt) error {
	return m.Called(receipt).Error(0)
}

func (m *mockReceiptRepo) Updates(id string, fields map[string]interface{}) error {
	return m.Called(id, fields).Error(0)
}

func (m *mockReceiptRepo) MarkWithdrawAvailable(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *mockUserRepo) FindByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) FindByStripeID(stripeID string) (*models.User, error) {
	args := m.Called(stripeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) FindByBankingID(bankingID string) (*models.User, error) {
	args := m.Called(bankingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) FindByAuthRef(authRef string) (*models.User, error) {
	args := m.Called(authRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) Save(user *models.User) error {
	return m.Called(user).Error(0)
}

type mockRefundRepo struct {
	mock.Mock
}

func (m *mockRefundRepo) Create(refund *models.Refund) error {
	return m.Called(refund).Error(0)
}

func (m *mockRefundRepo) FindByID(id string) (*models.Refund, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *mockRefundRepo) FindByInstallmentID(installmentID string) (*models.Refund, error) {
	args := m.Called(installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *mockRefundRepo) ListByReceipt(receiptID string) ([]models.Refund, error) {
	args := m.Called(receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Refund), args.Error(1)
}

func (m *mockRefundRepo) Save(refund *models.Refund) error {
	return m.Called(refund).Error(0)
}

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(dispute *models.Dispute) error {
	return m.Called(dispute).Error(0)
}

func (m *mockDisputeRepo) FindByID(id string) (*models.Dispute, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) FindByStripeRef(ref string) (*models.Dispute, error) {
	args := m.Called(ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByReceipt(receiptID string) ([]models.Dispute, error) {
	args := m.Called(receiptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByInstallment(installmentID string) ([]models.Dispute, error) {
	args := m.Called(installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Save(dispute *models.Dispute) error {
	return m.Called(dispute).Error(0)
}

func (m *mockDisputeRepo) LinkEvidences(dispute *models.Dispute, evidences []models.Evidence) error {
	return m.Called(dispute, evidences).Error(0)
}

type mockEvidenceRepo struct {
	mock.Mock
}

func (m *mockEvidenceRepo) CreateBatch(evidences []models.Evidence) error {
	return m.Called(evidences).Error(0)
}

func (m *mockEvidenceRepo) Save(evidence *models.Evidence) error {
	return m.Called(evidence).Error(0)
}

func (m *mockEvidenceRepo) ResetValues(ids []string) error {
	return m.Called(ids).Error(0)
}

type mockFiatGateway struct {
	mock.Mock
}

func (m *mockFiatGateway) CreateInstallmentIntent(ctx context.Context, p fiat.InstallmentIntentParams) (*fiat.PaymentIntent, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.PaymentIntent), args.Error(1)
}

func (m *mockFiatGateway) CreateRecoupmentCharge(ctx context.Context, p fiat.RecoupmentChargeParams) (*fiat.PaymentIntent, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.PaymentIntent), args.Error(1)
}

func (m *mockFiatGateway) RetrievePaymentIntent(ctx context.Context, id string) (*fiat.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.PaymentIntent), args.Error(1)
}

func (m *mockFiatGateway) AttachPaymentMethod(ctx context.Context, intentID, paymentMethodID string) error {
	return m.Called(ctx, intentID, paymentMethodID).Error(0)
}

func (m *mockFiatGateway) ConfirmIntentOffSession(ctx context.Context, intentID string) error {
	return m.Called(ctx, intentID).Error(0)
}

func (m *mockFiatGateway) CancelPaymentIntent(ctx context.Context, intentID, reason string) (*fiat.PaymentIntent, error) {
	args := m.Called(ctx, intentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.PaymentIntent), args.Error(1)
}

func (m *mockFiatGateway) IntentReceiptURL(ctx context.Context, intentID string) (string, error) {
	args := m.Called(ctx, intentID)
	return args.String(0), args.Error(1)
}

func (m *mockFiatGateway) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *mockFiatGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	return m.Called(ctx, customerID, paymentMethodID).Error(0)
}

func (m *mockFiatGateway) RetrievePaymentMethod(ctx context.Context, id string) (*fiat.PaymentMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.PaymentMethod), args.Error(1)
}

func (m *mockFiatGateway) CreateTaxCalculation(ctx context.Context, p fiat.TaxCalculationParams) (*fiat.TaxCalculation, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.TaxCalculation), args.Error(1)
}

func (m *mockFiatGateway) CreateTaxTransaction(ctx context.Context, p fiat.TaxTransactionParams) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockFiatGateway) ReverseTaxTransaction(ctx context.Context, originalTransaction, reference string) error {
	return m.Called(ctx, originalTransaction, reference).Error(0)
}

func (m *mockFiatGateway) CreateTransfer(ctx context.Context, p fiat.TransferParams) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockFiatGateway) TransferReversed(ctx context.Context, transferID, onAccount string) (bool, error) {
	args := m.Called(ctx, transferID, onAccount)
	return args.Bool(0), args.Error(1)
}

func (m *mockFiatGateway) ReverseTransfer(ctx context.Context, transferID, onAccount string) error {
	return m.Called(ctx, transferID, onAccount).Error(0)
}

func (m *mockFiatGateway) CreateRefund(ctx context.Context, paymentIntentID, installmentID string) (*fiat.Refund, error) {
	args := m.Called(ctx, paymentIntentID, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.Refund), args.Error(1)
}

func (m *mockFiatGateway) CreatePartialRefund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	return m.Called(ctx, paymentIntentID, amountCents).Error(0)
}

func (m *mockFiatGateway) ChargeAvailableOn(ctx context.Context, chargeID string) (int64, error) {
	args := m.Called(ctx, chargeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFiatGateway) RetrieveChargeRefund(ctx context.Context, chargeID string) (*fiat.ChargeRefund, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.ChargeRefund), args.Error(1)
}

func (m *mockFiatGateway) RetrieveBalanceTransaction(ctx context.Context, id string) (*fiat.BalanceTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.BalanceTransaction), args.Error(1)
}

func (m *mockFiatGateway) PayoutPaymentIntents(ctx context.Context, payoutID, connectedAccount string) ([]string, error) {
	args := m.Called(ctx, payoutID, connectedAccount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockFiatGateway) RetrieveDispute(ctx context.Context, id string) (*fiat.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiat.Dispute), args.Error(1)
}

func (m *mockFiatGateway) RecordDisputeRecoupment(ctx context.Context, disputeID, paymentIntentID string) error {
	return m.Called(ctx, disputeID, paymentIntentID).Error(0)
}

func (m *mockFiatGateway) SubmitDisputeEvidence(ctx context.Context, disputeID string, evidence map[string]string) error {
	return m.Called(ctx, disputeID, evidence).Error(0)
}

type mockChainGateway struct {
	mock.Mock
}

func (m *mockChainGateway) Pledge(ctx context.Context, p treasury.PledgeParams) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockChainGateway) Confirm(ctx context.Context, receiptID string, amountCents int64) (*treasury.ConfirmResult, error) {
	args := m.Called(ctx, receiptID, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.ConfirmResult), args.Error(1)
}

func (m *mockChainGateway) Withdraw(ctx context.Context, receiptID string) (string, error) {
	args := m.Called(ctx, receiptID)
	return args.String(0), args.Error(1)
}

func (m *mockChainGateway) Refund(ctx context.Context, receiptID string) (string, error) {
	args := m.Called(ctx, receiptID)
	return args.String(0), args.Error(1)
}
