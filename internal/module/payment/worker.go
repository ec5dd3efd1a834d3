package payment

import (
	"context"
	"errors"

	"github.com/civic-os/payments/internal/infra/queue"
	"github.com/google/uuid"
)

// QueuePayments is the queue all payment jobs run on.
const QueuePayments = "payments"

// Job kinds handled by this module.
const (
	JobKindCreateIntent  = "payment_create_intent"
	JobKindProcessRefund = "payment_process_refund"
)

// Queue priorities. Intents beat refunds beat notifications when workers
// are contended.
const (
	PriorityIntent = 1
	PriorityRefund = 2
	PriorityNotify = 3
)

// CreateIntentArgs is the job payload for creating a provider intent.
type CreateIntentArgs struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// RefundArgs is the job payload for processing a refund.
type RefundArgs struct {
	RefundID uuid.UUID `json:"refund_id"`
}

// RegisterWorkers registers the payment job handlers with the queue.
func (s *Service) RegisterWorkers(q *queue.Queue) {
	q.RegisterHandler(JobKindCreateIntent, s.handleCreateIntentJob)
	q.RegisterHandler(JobKindProcessRefund, s.handleRefundJob)
}

func (s *Service) handleCreateIntentJob(ctx context.Context, job *queue.Job) error {
	var args CreateIntentArgs
	if err := job.UnmarshalArgs(&args); err != nil {
		return queue.Permanent(err)
	}

	err := s.ProcessCreateIntent(ctx, args.TransactionID)
	if errors.Is(err, ErrTransactionNotFound) {
		// A job referencing a row that no longer exists will never succeed.
		return queue.Permanent(err)
	}
	return err
}

func (s *Service) handleRefundJob(ctx context.Context, job *queue.Job) error {
	var args RefundArgs
	if err := job.UnmarshalArgs(&args); err != nil {
		return queue.Permanent(err)
	}

	err := s.ProcessRefund(ctx, args.RefundID)
	if errors.Is(err, ErrRefundNotFound) {
		return queue.Permanent(err)
	}
	return err
}
