package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for payment data access.
type Repository interface {
	// WithTx returns a repository scoped to the given transaction.
	WithTx(tx *gorm.DB) Repository

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Transaction, error)
	SaveFeeSnapshot(ctx context.Context, id uuid.UUID, fee decimal.Decimal, percent float64, flatCents int64, refundable bool) error
	MarkIntentCreated(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecret string) error
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus, errorMessage string) error

	// Refund operations
	CreateRefund(ctx context.Context, refund *Refund) error
	GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error)
	HasPendingRefund(ctx context.Context, transactionID uuid.UUID) (bool, error)
	ListPendingRefundsForUpdate(ctx context.Context, transactionID uuid.UUID) ([]*Refund, error)
	MarkRefundSucceeded(ctx context.Context, id uuid.UUID, providerRefundID string) error
	MarkRefundFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// Webhook event operations
	FindOrCreateWebhookEvent(ctx context.Context, event *WebhookEvent) (created bool, existing *WebhookEvent, err error)
	MarkWebhookEventProcessed(ctx context.Context, provider, providerEventID string) error
	SetWebhookEventError(ctx context.Context, provider, providerEventID string, processErr error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// --- Transaction Operations ---

func (r *repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var tx Transaction
	err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

func (r *repository) GetTransactionByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Transaction, error) {
	var tx Transaction
	err := r.db.WithContext(ctx).First(&tx, "provider_payment_id = ?", providerPaymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction by provider payment id: %w", err)
	}
	return &tx, nil
}

func (r *repository) SaveFeeSnapshot(ctx context.Context, id uuid.UUID, fee decimal.Decimal, percent float64, flatCents int64, refundable bool) error {
	err := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND processing_fee IS NULL", id).
		Updates(map[string]interface{}{
			"processing_fee": fee,
			"fee_percent":    percent,
			"fee_flat_cents": flatCents,
			"fee_refundable": refundable,
		}).Error
	if err != nil {
		return fmt.Errorf("save fee snapshot: %w", err)
	}
	return nil
}

func (r *repository) MarkIntentCreated(ctx context.Context, id uuid.UUID, providerPaymentID, clientSecret string) error {
	err := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 StatusPending,
			"provider_payment_id":    providerPaymentID,
			"provider_client_secret": clientSecret,
			"error_message":          nil,
		}).Error
	if err != nil {
		return fmt.Errorf("mark intent created: %w", err)
	}
	return nil
}

func (r *repository) SetTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus, errorMessage string) error {
	updates := map[string]interface{}{"status": status}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	} else if status == StatusSucceeded {
		updates["error_message"] = nil
	}
	err := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	return nil
}

// --- Refund Operations ---

func (r *repository) CreateRefund(ctx context.Context, refund *Refund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (r *repository) GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error) {
	var refund Refund
	err := r.db.WithContext(ctx).First(&refund, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return &refund, nil
}

func (r *repository) HasPendingRefund(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Refund{}).
		Where("transaction_id = ? AND status = ?", transactionID, RefundStatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count pending refunds: %w", err)
	}
	return count > 0, nil
}

func (r *repository) ListPendingRefundsForUpdate(ctx context.Context, transactionID uuid.UUID) ([]*Refund, error) {
	var refunds []*Refund
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ? AND status = ?", transactionID, RefundStatusPending).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("list pending refunds: %w", err)
	}
	return refunds, nil
}

func (r *repository) MarkRefundSucceeded(ctx context.Context, id uuid.UUID, providerRefundID string) error {
	updates := map[string]interface{}{
		"status":       RefundStatusSucceeded,
		"processed_at": gorm.Expr("NOW()"),
	}
	if providerRefundID != "" {
		updates["provider_refund_id"] = providerRefundID
	}
	err := r.db.WithContext(ctx).Model(&Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark refund succeeded: %w", err)
	}
	return nil
}

func (r *repository) MarkRefundFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	err := r.db.WithContext(ctx).Model(&Refund{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        RefundStatusFailed,
			"error_message": errorMessage,
		}).Error
	if err != nil {
		return fmt.Errorf("mark refund failed: %w", err)
	}
	return nil
}

// --- Webhook Event Operations ---

func (r *repository) FindOrCreateWebhookEvent(ctx context.Context, event *WebhookEvent) (bool, *WebhookEvent, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, nil, fmt.Errorf("insert webhook event: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, event, nil
	}

	// Conflict fired: the provider redelivered an event we already hold.
	var existing WebhookEvent
	err := r.db.WithContext(ctx).
		First(&existing, "provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).Error
	if err != nil {
		return false, nil, fmt.Errorf("get existing webhook event: %w", err)
	}
	return false, &existing, nil
}

func (r *repository) MarkWebhookEventProcessed(ctx context.Context, provider, providerEventID string) error {
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Updates(map[string]interface{}{
			"processed":     true,
			"processed_at":  gorm.Expr("NOW()"),
			"error_message": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (r *repository) SetWebhookEventError(ctx context.Context, provider, providerEventID string, processErr error) error {
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Update("error_message", processErr.Error()).Error
	if err != nil {
		return fmt.Errorf("set webhook event error: %w", err)
	}
	return nil
}
