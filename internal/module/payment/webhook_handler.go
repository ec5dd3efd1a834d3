package payment

import (
	"context"
	"io"
	"net/http"

	"github.com/civic-os/payments/internal/module/payment/provider"
	"github.com/civic-os/payments/internal/utils/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxWebhookBodyBytes caps inbound webhook payload size.
const DefaultMaxWebhookBodyBytes = 64 * 1024

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner wraps a gorm connection as a TxRunner.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return gormTxRunner{db: db}
}

func (r gormTxRunner) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// WebhookHandler receives provider notifications, verifies them, and applies
// them to the ledger exactly once.
type WebhookHandler struct {
	tx           TxRunner
	repo         Repository
	service      *Service
	registry     *provider.Registry
	metrics      *metrics.Metrics
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	tx TxRunner,
	repo Repository,
	service *Service,
	registry *provider.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
	maxBodyBytes int64,
) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxWebhookBodyBytes
	}
	return &WebhookHandler{
		tx:           tx,
		repo:         repo,
		service:      service,
		registry:     registry,
		metrics:      m,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhooks/:provider", h.HandleWebhook)
}

// HandleWebhook processes an inbound provider webhook.
//
// Verification failures return 400 with no durable record. Verified events
// are stored with a (provider, event id) uniqueness key; a redelivery of an
// already-processed event is acknowledged without reapplying it, while a
// redelivery of an event whose processing previously failed is retried.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	providerName := c.Param("provider")

	prov, err := h.registry.Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		h.count(providerName, "", "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	ev, err := prov.VerifyWebhook(body, c.Request.Header)
	if err != nil {
		h.logger.Warn("webhook signature verification failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		h.count(providerName, "", "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	event := &WebhookEvent{
		Provider:          providerName,
		ProviderEventID:   ev.ID,
		EventType:         ev.RawType,
		Payload:           string(body),
		SignatureVerified: true,
	}
	created, existing, err := h.repo.FindOrCreateWebhookEvent(c.Request.Context(), event)
	if err != nil {
		h.logger.Error("failed to store webhook event",
			zap.String("provider", providerName),
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store event"})
		return
	}
	if !created && existing.Processed {
		h.count(providerName, ev.RawType, "duplicate")
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	// Apply the event and flip the processed flag in one transaction, so a
	// crash between the two leaves the event eligible for redelivery.
	err = h.tx.Transaction(c.Request.Context(), func(tx *gorm.DB) error {
		txRepo := h.repo.WithTx(tx)
		if err := h.service.applyEvent(c.Request.Context(), txRepo, ev); err != nil {
			return err
		}
		return txRepo.MarkWebhookEventProcessed(c.Request.Context(), providerName, ev.ID)
	})
	if err != nil {
		h.logger.Error("webhook event processing failed",
			zap.String("provider", providerName),
			zap.String("event_id", ev.ID),
			zap.String("type", ev.RawType),
			zap.Error(err),
		)
		h.recordError(c.Request.Context(), providerName, ev.ID, err)
		h.count(providerName, ev.RawType, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	h.count(providerName, ev.RawType, "processed")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) recordError(ctx context.Context, providerName, eventID string, processErr error) {
	if err := h.repo.SetWebhookEventError(ctx, providerName, eventID, processErr); err != nil {
		h.logger.Error("failed to record webhook event error",
			zap.String("provider", providerName),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

func (h *WebhookHandler) count(providerName, eventType, status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebhookEventsTotal.WithLabelValues(providerName, eventType, status).Inc()
}
