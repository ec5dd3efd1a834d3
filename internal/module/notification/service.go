package notification

import (
	"context"
	"fmt"

	"github.com/civic-os/payments/internal/infra/queue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repository defines the interface for notification data access.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Service persists user notifications produced by background jobs.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new notification service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RegisterWorkers registers this module's job handlers.
func (s *Service) RegisterWorkers(q *queue.Queue) {
	q.RegisterHandler(JobKindSend, s.handleSendJob)
}

func (s *Service) handleSendJob(ctx context.Context, job *queue.Job) error {
	var args SendArgs
	if err := job.UnmarshalArgs(&args); err != nil {
		return queue.Permanent(err)
	}

	n := &Notification{
		UserID:  args.UserID,
		Subject: args.Subject,
		Body:    args.Body,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	s.logger.Debug("notification stored",
		zap.String("user_id", args.UserID.String()),
		zap.String("subject", args.Subject),
	)
	return nil
}
