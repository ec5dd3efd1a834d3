package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/civic-os/payments/internal/utils/metrics"
	"go.uber.org/zap"
)

// HandlerFunc executes a claimed job. Returning nil completes the job;
// returning an error reschedules it with backoff unless the error is
// permanent or attempts are exhausted.
type HandlerFunc func(ctx context.Context, job *Job) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the queue discards the job instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Config contains queue worker configuration.
type Config struct {
	Workers      int
	Queues       []string
	PollInterval time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	RecoverAfter time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:      4,
		Queues:       []string{DefaultQueue},
		PollInterval: time.Second,
		MaxAttempts:  DefaultMaxAttempts,
		BackoffBase:  5 * time.Second,
		BackoffMax:   10 * time.Minute,
		RecoverAfter: 10 * time.Minute,
	}
}

// Queue runs a bounded pool of workers claiming jobs from durable storage.
type Queue struct {
	mu sync.RWMutex

	repo     Repository
	handlers map[string]HandlerFunc
	config   *Config
	logger   *zap.Logger
	metrics  *metrics.Metrics

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates a new queue.
func New(repo Repository, config *Config, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		repo:     repo,
		handlers: make(map[string]HandlerFunc),
		config:   config,
		logger:   logger.Named("queue"),
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler registers the handler for a job kind.
func (q *Queue) RegisterHandler(kind string, h HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
	q.logger.Debug("registered handler", zap.String("kind", kind))
}

// Enqueue persists a new job. A zero maxAttempts uses the configured default.
func (q *Queue) Enqueue(ctx context.Context, kind string, args any, queueName string, priority, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = q.config.MaxAttempts
	}
	job, err := NewJob(kind, args, queueName, priority, maxAttempts)
	if err != nil {
		return err
	}
	if err := q.repo.Enqueue(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", kind),
		zap.String("queue", job.Queue),
	)
	return nil
}

// Start recovers stale claims and starts the worker pool. Stale claims
// are swept again on every RecoverAfter tick, so jobs orphaned by a
// worker that dies mid-run are rescheduled without a restart.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}
	q.running = true

	if err := q.recoverStale(ctx); err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}

	q.logger.Info("starting queue workers",
		zap.Int("workers", q.config.Workers),
		zap.Strings("queues", q.config.Queues),
	)
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.recoveryLoop()
	return nil
}

// recoverStale returns stale running claims to the available state.
func (q *Queue) recoverStale(ctx context.Context) error {
	recovered, err := q.repo.RecoverStale(ctx, q.config.RecoverAfter)
	if err != nil {
		return err
	}
	if recovered > 0 {
		q.logger.Warn("recovered stale running jobs", zap.Int64("count", recovered))
	}
	return nil
}

// recoveryLoop periodically sweeps stale claims until the queue stops.
func (q *Queue) recoveryLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.RecoverAfter)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			if err := q.recoverStale(context.Background()); err != nil {
				q.logger.Error("stale job recovery failed", zap.Error(err))
			}
		}
	}
}

// Stop drains in-flight jobs and stops the worker pool.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	q.logger.Info("stopping queue workers")
	close(q.stopCh)
	q.wg.Wait()
	q.logger.Info("queue workers stopped")
}

// worker claims and processes jobs until stopped.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		job, err := q.repo.ClaimNext(ctx, q.config.Queues)
		if err != nil {
			q.logger.Error("claim failed", zap.Int("worker", id), zap.Error(err))
			q.sleep(q.config.PollInterval)
			continue
		}
		if job == nil {
			q.sleep(q.config.PollInterval)
			continue
		}

		q.process(ctx, job)
	}
}

// sleep waits for d or until the queue is stopped.
func (q *Queue) sleep(d time.Duration) {
	select {
	case <-q.stopCh:
	case <-time.After(d):
	}
}

// process runs the handler for a claimed job and records the outcome.
func (q *Queue) process(ctx context.Context, job *Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Kind]
	q.mu.RUnlock()

	if !ok {
		q.logger.Error("no handler for job kind",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
		)
		if err := q.repo.Discard(ctx, job.ID, "no handler registered for kind: "+job.Kind); err != nil {
			q.logger.Error("discard failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		return
	}

	if q.metrics != nil {
		q.metrics.JobsInFlight.Inc()
		defer q.metrics.JobsInFlight.Dec()
	}

	start := time.Now()
	handlerErr := handler(ctx, job)
	elapsed := time.Since(start)

	if handlerErr == nil {
		if err := q.repo.Complete(ctx, job.ID); err != nil {
			q.logger.Error("complete failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			return
		}
		if q.metrics != nil {
			q.metrics.ObserveJob(job.Kind, "completed", elapsed)
		}
		q.logger.Debug("job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.Duration("elapsed", elapsed),
		)
		return
	}

	if IsPermanent(handlerErr) || job.Attempt >= job.MaxAttempts {
		// Fatal but observable: the job stays in the table for an operator.
		q.logger.Error("job discarded",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.Int("attempt", job.Attempt),
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Error(handlerErr),
		)
		if err := q.repo.Discard(ctx, job.ID, handlerErr.Error()); err != nil {
			q.logger.Error("discard failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		if q.metrics != nil {
			q.metrics.ObserveJob(job.Kind, "discarded", elapsed)
		}
		return
	}

	runAt := time.Now().Add(nextBackoff(job.Attempt, q.config.BackoffBase, q.config.BackoffMax))
	q.logger.Warn("job failed, rescheduling",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind),
		zap.Int("attempt", job.Attempt),
		zap.Time("run_at", runAt),
		zap.Error(handlerErr),
	)
	if err := q.repo.Retry(ctx, job.ID, runAt, handlerErr.Error()); err != nil {
		q.logger.Error("retry failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	if q.metrics != nil {
		q.metrics.ObserveJob(job.Kind, "retried", elapsed)
		q.metrics.JobRetriesTotal.WithLabelValues(job.Kind).Inc()
	}
}

// nextBackoff returns the delay before the given attempt is retried,
// doubling per attempt and capped at max.
func nextBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
