package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for durable job storage.
type Repository interface {
	// Enqueue persists a new available job.
	Enqueue(ctx context.Context, job *Job) error

	// ClaimNext atomically claims the next available job from the given
	// queues, ordered by priority (lower first) then scheduled time.
	// Returns (nil, nil) when no job is claimable.
	ClaimNext(ctx context.Context, queues []string) (*Job, error)

	// Complete marks a job completed.
	Complete(ctx context.Context, jobID uuid.UUID) error

	// Retry reschedules a job for a later attempt.
	Retry(ctx context.Context, jobID uuid.UUID, runAt time.Time, lastError string) error

	// Discard moves a job to the terminal discarded state.
	Discard(ctx context.Context, jobID uuid.UUID, lastError string) error

	// RecoverStale returns jobs stuck in running longer than maxAge back to
	// available. Covers workers that crashed after claiming.
	RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new job repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Enqueue(ctx context.Context, job *Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (r *repository) ClaimNext(ctx context.Context, queues []string) (*Job, error) {
	var claimed *Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job Job
		// Row lock with SKIP LOCKED gives single-claim semantics across
		// concurrent worker processes.
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state = ? AND queue IN ? AND scheduled_at <= NOW()", JobStateAvailable, queues).
			Order("priority ASC, scheduled_at ASC").
			First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("select claimable job: %w", err)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"state":      JobStateRunning,
			"attempt":    job.Attempt + 1,
			"claimed_at": now,
		}
		if err := tx.Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("claim job: %w", err)
		}

		job.State = JobStateRunning
		job.Attempt++
		job.ClaimedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repository) Complete(ctx context.Context, jobID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"state":       JobStateCompleted,
			"finished_at": gorm.Expr("NOW()"),
			"last_error":  "",
		}).Error
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (r *repository) Retry(ctx context.Context, jobID uuid.UUID, runAt time.Time, lastError string) error {
	err := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"state":        JobStateAvailable,
			"scheduled_at": runAt,
			"claimed_at":   nil,
			"last_error":   lastError,
		}).Error
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

func (r *repository) Discard(ctx context.Context, jobID uuid.UUID, lastError string) error {
	err := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"state":       JobStateDiscarded,
			"finished_at": gorm.Expr("NOW()"),
			"last_error":  lastError,
		}).Error
	if err != nil {
		return fmt.Errorf("discard job: %w", err)
	}
	return nil
}

func (r *repository) RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("state = ? AND claimed_at < ?", JobStateRunning, time.Now().Add(-maxAge)).
		Updates(map[string]interface{}{
			"state":      JobStateAvailable,
			"claimed_at": nil,
			"last_error": "recovered after stale claim",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
