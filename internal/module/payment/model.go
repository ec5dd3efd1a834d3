package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the status of a payment transaction.
type TransactionStatus string

const (
	StatusPendingIntent TransactionStatus = "pending_intent"
	StatusPending       TransactionStatus = "pending"
	StatusSucceeded     TransactionStatus = "succeeded"
	StatusFailed        TransactionStatus = "failed"
	StatusCanceled      TransactionStatus = "canceled"
)

// IsTerminal returns true for terminal transaction statuses.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Transaction is the payment ledger row. Amounts are decimal currency units;
// the fee snapshot is captured at computation time and never recomputed.
type Transaction struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal   `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency    string            `json:"currency" gorm:"not null;default:usd"`
	Status      TransactionStatus `json:"status" gorm:"not null;default:pending_intent;index"`
	Description string            `json:"description"`
	Provider    string            `json:"provider" gorm:"not null;default:stripe"`

	// Set once the provider has acknowledged intent creation; null before.
	ProviderPaymentID    *string `json:"-" gorm:"uniqueIndex"`
	ProviderClientSecret *string `json:"-"`

	// Fee snapshot, immutable once written. New attempts create a new
	// Transaction row rather than mutating fee history.
	ProcessingFee *decimal.Decimal `json:"processing_fee,omitempty" gorm:"type:numeric(12,2)"`
	FeePercent    *float64         `json:"fee_percent,omitempty"`
	FeeFlatCents  *int64           `json:"fee_flat_cents,omitempty"`
	FeeRefundable *bool            `json:"fee_refundable,omitempty"`

	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Transaction) TableName() string {
	return "transactions"
}

// IsSucceeded returns true if the transaction succeeded.
func (t *Transaction) IsSucceeded() bool {
	return t.Status == StatusSucceeded
}

// AmountMinorUnits returns the base amount in minor currency units.
func (t *Transaction) AmountMinorUnits() int64 {
	return t.Amount.Shift(2).Round(0).IntPart()
}

// RefundStatus represents the status of a refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is a refund request against a succeeded transaction. At most one
// pending refund may exist per transaction; the initiating operation enforces
// that before inserting.
type Refund struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TransactionID    uuid.UUID       `json:"transaction_id" gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Reason           string          `json:"reason"`
	Status           RefundStatus    `json:"status" gorm:"not null;default:pending;index"`
	ProviderRefundID *string         `json:"-"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName returns the database table name.
func (Refund) TableName() string {
	return "refunds"
}

// AmountMinorUnits returns the refund amount in minor currency units.
func (r *Refund) AmountMinorUnits() int64 {
	return r.Amount.Shift(2).Round(0).IntPart()
}

// WebhookEvent is a stored inbound provider notification. The compound
// unique index on (provider, provider_event_id) is the sole idempotency key
// for webhook deliveries.
type WebhookEvent struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider          string     `gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	ProviderEventID   string     `gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	EventType         string     `gorm:"not null"`
	Payload           string     `gorm:"type:jsonb"`
	SignatureVerified bool       `gorm:"default:false"`
	Processed         bool       `gorm:"default:false"`
	ProcessedAt       *time.Time
	ErrorMessage      *string
	CreatedAt         time.Time
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
