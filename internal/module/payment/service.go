package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/civic-os/payments/internal/module/notification"
	"github.com/civic-os/payments/internal/module/payment/provider"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service implements payment operations.
type Service struct {
	repo            Repository
	registry        *provider.Registry
	fees            *FeeCalculator
	jobs            Enqueuer
	defaultProvider string
	defaultCurrency string
	logger          *zap.Logger
}

// NewService creates a new payment service.
func NewService(
	repo Repository,
	registry *provider.Registry,
	fees *FeeCalculator,
	jobs Enqueuer,
	defaultCurrency string,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:            repo,
		registry:        registry,
		fees:            fees,
		jobs:            jobs,
		defaultProvider: "stripe",
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// CreateTransactionRequest carries the fields for a new ledger row.
type CreateTransactionRequest struct {
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

// CreateTransaction inserts a pending_intent ledger row and enqueues the
// create-intent job. The enqueue is an explicit call here, not a database
// trigger, so the job-creation contract stays visible and testable.
func (s *Service) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	tx := &Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    currency,
		Status:      StatusPendingIntent,
		Description: req.Description,
		Provider:    s.defaultProvider,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, JobKindCreateIntent, CreateIntentArgs{TransactionID: tx.ID},
		QueuePayments, PriorityIntent, 0); err != nil {
		return nil, fmt.Errorf("enqueue create intent job: %w", err)
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("user_id", tx.UserID.String()),
		zap.String("amount", tx.Amount.String()),
	)
	return tx, nil
}

// EnsureIntent decides what to do when a caller retries payment for work
// that may already have a transaction: reuse an in-flight one, reject a
// duplicate of a succeeded one, or create a new row after failure.
func (s *Service) EnsureIntent(ctx context.Context, priorID uuid.UUID, req *CreateTransactionRequest) (*Transaction, error) {
	var prior *Transaction
	if priorID != uuid.Nil {
		p, err := s.repo.GetTransaction(ctx, priorID)
		if err != nil && !errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		prior = p
	}

	switch decision := DecideIntent(prior); decision {
	case DecisionReuse:
		s.logger.Info("reusing in-flight transaction",
			zap.String("transaction_id", prior.ID.String()),
			zap.String("status", string(prior.Status)),
		)
		return prior, nil
	case DecisionDuplicate:
		return nil, ErrAlreadyPaid
	default:
		return s.CreateTransaction(ctx, req)
	}
}

// ProcessCreateIntent handles a create-intent job: compute the fee, persist
// the snapshot, and create the provider intent for base + fee. Idempotent
// against job redelivery: once an intent exists the provider is never
// called again for the same transaction.
func (s *Service) ProcessCreateIntent(ctx context.Context, transactionID uuid.UUID) error {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	// A failed transaction with no provider payment id never reached the
	// provider; redelivery retries the intent. Anything else past
	// pending_intent is already handled.
	retryableFailure := tx.Status == StatusFailed && tx.ProviderPaymentID == nil
	if tx.Status != StatusPendingIntent && !retryableFailure {
		s.logger.Info("transaction already handled, skipping",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("status", string(tx.Status)),
		)
		return nil
	}

	base := tx.AmountMinorUnits()
	fee := s.fees.CalculateFee(base)
	total := base + fee

	// Persist the snapshot before calling the provider so the audit trail
	// exists even if the call fails or the process crashes right after.
	feeAmount := decimal.NewFromInt(fee).Shift(-2)
	if err := s.repo.SaveFeeSnapshot(ctx, tx.ID, feeAmount,
		s.fees.PercentValue(), s.fees.FlatCents(), s.fees.Refundable()); err != nil {
		return err
	}

	prov, err := s.registry.Get(tx.Provider)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, tx.Provider)
	}

	// The payer is charged base + fee; the fee is collected, not absorbed.
	intent, err := prov.CreateIntent(ctx, total, tx.Currency, tx.Description)
	if err != nil {
		if statusErr := s.repo.SetTransactionStatus(ctx, tx.ID, StatusFailed, err.Error()); statusErr != nil {
			s.logger.Error("failed to record intent failure",
				zap.String("transaction_id", tx.ID.String()),
				zap.Error(statusErr),
			)
		}
		// Propagate so the queue retries; provider outages are transient.
		return fmt.Errorf("create intent: %w", err)
	}

	if err := s.repo.MarkIntentCreated(ctx, tx.ID, intent.ID, intent.ClientSecret); err != nil {
		return err
	}

	s.logger.Info("payment intent created",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("provider_payment_id", intent.ID),
		zap.Int64("amount_minor_units", base),
		zap.Int64("fee_minor_units", fee),
	)
	return nil
}

// InitiateRefund validates the refund preconditions, inserts the pending
// Refund row, and enqueues the refund job. Only one pending refund may
// exist per transaction.
func (s *Service) InitiateRefund(ctx context.Context, transactionID uuid.UUID, amount decimal.Decimal, reason string) (*Refund, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsSucceeded() {
		return nil, ErrNotSucceeded
	}

	pending, err := s.repo.HasPendingRefund(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrRefundPending
	}

	if amount.IsZero() {
		amount = tx.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(tx.Amount) {
		return nil, ErrInvalidAmount
	}

	refund := &Refund{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		Amount:        amount,
		Reason:        reason,
		Status:        RefundStatusPending,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, JobKindProcessRefund, RefundArgs{RefundID: refund.ID},
		QueuePayments, PriorityRefund, 0); err != nil {
		return nil, fmt.Errorf("enqueue refund job: %w", err)
	}

	s.logger.Info("refund initiated",
		zap.String("refund_id", refund.ID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("amount", amount.String()),
	)
	return refund, nil
}

// ProcessRefund handles a refund job. Idempotent against redelivery: a
// refund no longer pending is a no-op success. Provider rejections are
// permanent: the refund is marked failed and the job completes; an
// operator investigates and re-initiates.
func (s *Service) ProcessRefund(ctx context.Context, refundID uuid.UUID) error {
	refund, err := s.repo.GetRefund(ctx, refundID)
	if err != nil {
		return err
	}

	if refund.Status != RefundStatusPending {
		s.logger.Info("refund already handled, skipping",
			zap.String("refund_id", refund.ID.String()),
			zap.String("status", string(refund.Status)),
		)
		return nil
	}

	tx, err := s.repo.GetTransaction(ctx, refund.TransactionID)
	if err != nil {
		return err
	}
	if tx.ProviderPaymentID == nil {
		// Refunds are only created against succeeded transactions, which
		// always carry a provider payment id. Hitting this means the
		// ledger is inconsistent.
		if markErr := s.repo.MarkRefundFailed(ctx, refund.ID, "transaction has no provider payment id"); markErr != nil {
			return markErr
		}
		s.logger.Error("refund against transaction without provider payment id",
			zap.String("refund_id", refund.ID.String()),
			zap.String("transaction_id", tx.ID.String()),
		)
		return nil
	}

	prov, err := s.registry.Get(tx.Provider)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, tx.Provider)
	}

	res, err := prov.CreateRefund(ctx, *tx.ProviderPaymentID, refund.AmountMinorUnits(), refund.Reason)
	if err != nil {
		s.logger.Warn("provider rejected refund",
			zap.String("refund_id", refund.ID.String()),
			zap.Error(err),
		)
		return s.repo.MarkRefundFailed(ctx, refund.ID, err.Error())
	}

	if err := s.repo.MarkRefundSucceeded(ctx, refund.ID, res.ID); err != nil {
		return err
	}

	// Best effort: a lost notification never fails a completed refund.
	notifyArgs := notification.SendArgs{
		UserID:  tx.UserID,
		Subject: "Refund processed",
		Body:    fmt.Sprintf("Your refund of %s %s has been processed.", refund.Amount.String(), tx.Currency),
	}
	if err := s.jobs.Enqueue(ctx, notification.JobKindSend, notifyArgs,
		QueuePayments, PriorityNotify, 0); err != nil {
		s.logger.Warn("failed to enqueue refund notification",
			zap.String("refund_id", refund.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("refund processed",
		zap.String("refund_id", refund.ID.String()),
		zap.String("provider_refund_id", res.ID),
	)
	return nil
}

// GetTransaction returns a transaction by ID.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// --- Webhook event application ---

// applyEvent applies a verified provider event to the ledger. Runs inside
// the webhook handler's database transaction via the tx-scoped repository.
func (s *Service) applyEvent(ctx context.Context, repo Repository, ev *provider.Event) error {
	switch ev.Type {
	case provider.EventIntentSucceeded:
		return s.applyIntentStatus(ctx, repo, ev, StatusSucceeded)
	case provider.EventIntentFailed:
		return s.applyIntentStatus(ctx, repo, ev, StatusFailed)
	case provider.EventIntentCanceled:
		return s.applyIntentStatus(ctx, repo, ev, StatusCanceled)
	case provider.EventChargeRefunded:
		return s.applyChargeRefunded(ctx, repo, ev)
	default:
		// Unrecognized event types are acknowledged with no state change.
		s.logger.Debug("ignoring webhook event type", zap.String("type", ev.RawType))
		return nil
	}
}

func (s *Service) applyIntentStatus(ctx context.Context, repo Repository, ev *provider.Event, status TransactionStatus) error {
	tx, err := repo.GetTransactionByProviderPaymentID(ctx, ev.ProviderPaymentID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			// An orphaned intent from an abandoned retry. Not an error.
			s.logger.Info("webhook for unknown payment intent, ignoring",
				zap.String("provider_payment_id", ev.ProviderPaymentID),
				zap.String("type", ev.RawType),
			)
			return nil
		}
		return err
	}

	if err := repo.SetTransactionStatus(ctx, tx.ID, status, ev.FailureMessage); err != nil {
		return err
	}

	s.logger.Info("transaction status updated via webhook",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("status", string(status)),
	)
	return nil
}

func (s *Service) applyChargeRefunded(ctx context.Context, repo Repository, ev *provider.Event) error {
	tx, err := repo.GetTransactionByProviderPaymentID(ctx, ev.ProviderPaymentID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			s.logger.Info("refund webhook for unknown payment intent, ignoring",
				zap.String("provider_payment_id", ev.ProviderPaymentID),
			)
			return nil
		}
		return err
	}

	refunds, err := repo.ListPendingRefundsForUpdate(ctx, tx.ID)
	if err != nil {
		return err
	}
	if len(refunds) == 0 {
		s.logger.Info("refund webhook with no pending refund, ignoring",
			zap.String("transaction_id", tx.ID.String()),
		)
		return nil
	}
	if len(refunds) > 1 {
		// The initiator guarantees at most one pending refund per
		// transaction. More than one means that invariant was violated
		// upstream; do not silently reconcile.
		s.logger.Error("multiple pending refunds for one transaction",
			zap.String("transaction_id", tx.ID.String()),
			zap.Int("count", len(refunds)),
		)
	}

	if err := repo.MarkRefundSucceeded(ctx, refunds[0].ID, ev.ProviderRefundID); err != nil {
		return err
	}

	s.logger.Info("refund confirmed via webhook",
		zap.String("refund_id", refunds[0].ID.String()),
		zap.String("transaction_id", tx.ID.String()),
	)
	return nil
}
