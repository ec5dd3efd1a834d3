package notification

import (
	"context"
	"testing"

	"github.com/civic-os/payments/internal/infra/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryRepository struct {
	created []*Notification
}

func (r *memoryRepository) Create(ctx context.Context, n *Notification) error {
	r.created = append(r.created, n)
	return nil
}

func TestService_HandleSendJob(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewService(repo, zap.NewNop())

	userID := uuid.New()
	job, err := queue.NewJob(JobKindSend, SendArgs{
		UserID:  userID,
		Subject: "Refund processed",
		Body:    "Your refund of 100 usd has been processed.",
	}, "", 0, 0)
	require.NoError(t, err)

	err = svc.handleSendJob(context.Background(), job)

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, userID, repo.created[0].UserID)
	assert.Equal(t, "Refund processed", repo.created[0].Subject)
}

func TestService_HandleSendJob_BadArgs(t *testing.T) {
	svc := NewService(&memoryRepository{}, zap.NewNop())

	job := &queue.Job{Kind: JobKindSend, Args: "not json"}
	err := svc.handleSendJob(context.Background(), job)

	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err), "malformed args must not be retried")
}
