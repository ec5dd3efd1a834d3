package payment

import "context"

// Enqueuer defines the job-creation capability the payment module needs.
// This interface is defined in the payment module (consumer) following the
// Dependency Inversion Principle; the queue's worker pool satisfies it.
type Enqueuer interface {
	// Enqueue persists a new job for later execution.
	Enqueue(ctx context.Context, kind string, args any, queueName string, priority, maxAttempts int) error
}
