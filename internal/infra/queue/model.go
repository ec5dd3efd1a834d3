package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	JobStateAvailable JobState = "available"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateDiscarded JobState = "discarded"
)

// Default queue parameters.
const (
	DefaultQueue       = "default"
	DefaultPriority    = 1
	DefaultMaxAttempts = 5
)

// Job is a durable unit of work. Delivery is at-least-once: a job may be
// claimed and executed more than once if a worker crashes after doing external
// work but before committing completion, so every handler must be idempotent.
type Job struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind        string     `json:"kind" gorm:"not null;index"`
	Args        string     `json:"args" gorm:"type:jsonb"`
	Queue       string     `json:"queue" gorm:"not null;default:default;index:idx_jobs_claim"`
	Priority    int        `json:"priority" gorm:"not null;default:1"`
	State       JobState   `json:"state" gorm:"not null;default:available;index:idx_jobs_claim"`
	Attempt     int        `json:"attempt" gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"not null;default:5"`
	ScheduledAt time.Time  `json:"scheduled_at" gorm:"not null;index:idx_jobs_claim"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (Job) TableName() string {
	return "jobs"
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateDiscarded
}

// UnmarshalArgs decodes the job's JSON args into v.
func (j *Job) UnmarshalArgs(v any) error {
	if err := json.Unmarshal([]byte(j.Args), v); err != nil {
		return fmt.Errorf("unmarshal job args: %w", err)
	}
	return nil
}

// NewJob builds an available job for the given kind and args.
func NewJob(kind string, args any, queueName string, priority, maxAttempts int) (*Job, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal job args: %w", err)
	}
	if queueName == "" {
		queueName = DefaultQueue
	}
	if priority <= 0 {
		priority = DefaultPriority
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Args:        string(data),
		Queue:       queueName,
		Priority:    priority,
		State:       JobStateAvailable,
		MaxAttempts: maxAttempts,
		ScheduledAt: time.Now(),
	}, nil
}
