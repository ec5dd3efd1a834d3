package payment

import (
	"context"
	"net/http"

	"github.com/civic-os/payments/internal/module/payment/provider"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) WithTx(tx *gorm.DB) Repository {
	return m
}

func (m *MockRepository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

func (m *MockRepository) GetTransactionByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Transaction, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

func (m *MockRepository) SaveFeeSnapshot(ctx context.Context, id uuid.UUID, fee decimal.Decimal, percent float64, flatCents int64, refundable bool) error {
	args := m.Called(ctx, id, fee, percent, flatCents, refundable)
	return args.Error(0)
}

func (m *MockRepository) MarkIntentCreated(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecret string) error {
	args := m.Called(ctx, id, providerPaymentID, clientSecret)
	return args.Error(0)
}

func (m *MockRepository) SetTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *MockRepository) CreateRefund(ctx context.Context, refund *Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockRepository) GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Refund), args.Error(1)
}

func (m *MockRepository) HasPendingRefund(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListPendingRefundsForUpdate(ctx context.Context, transactionID uuid.UUID) ([]*Refund, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Refund), args.Error(1)
}

func (m *MockRepository) MarkRefundSucceeded(ctx context.Context, id uuid.UUID, providerRefundID string) error {
	args := m.Called(ctx, id, providerRefundID)
	return args.Error(0)
}

func (m *MockRepository) MarkRefundFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockRepository) FindOrCreateWebhookEvent(ctx context.Context, event *WebhookEvent) (bool, *WebhookEvent, error) {
	args := m.Called(ctx, event)
	var existing *WebhookEvent
	if args.Get(1) != nil {
		existing = args.Get(1).(*WebhookEvent)
	}
	return args.Bool(0), existing, args.Error(2)
}

func (m *MockRepository) MarkWebhookEventProcessed(ctx context.Context, providerName, providerEventID string) error {
	args := m.Called(ctx, providerName, providerEventID)
	return args.Error(0)
}

func (m *MockRepository) SetWebhookEventError(ctx context.Context, providerName, providerEventID string, processErr error) error {
	args := m.Called(ctx, providerName, providerEventID, processErr)
	return args.Error(0)
}

// MockProvider is a mock payment provider.
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string {
	if m.name == "" {
		return "stripe"
	}
	return m.name
}

func (m *MockProvider) CreateIntent(ctx context.Context, amountMinorUnits int64, currency, description string) (*provider.Intent, error) {
	args := m.Called(ctx, amountMinorUnits, currency, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Intent), args.Error(1)
}

func (m *MockProvider) CreateRefund(ctx context.Context, providerPaymentID string, amountMinorUnits int64, reason string) (*provider.Refund, error) {
	args := m.Called(ctx, providerPaymentID, amountMinorUnits, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Refund), args.Error(1)
}

func (m *MockProvider) VerifyWebhook(payload []byte, header http.Header) (*provider.Event, error) {
	args := m.Called(payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Event), args.Error(1)
}

// MockEnqueuer records enqueued jobs.
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, kind string, args any, queueName string, priority, maxAttempts int) error {
	a := m.Called(ctx, kind, args, queueName, priority, maxAttempts)
	return a.Error(0)
}
