package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/civic-os/payments/internal/utils/metrics"
)

// BreakerConfig contains circuit breaker configuration for provider calls.
type BreakerConfig struct {
	FailureThreshold    uint32
	Timeout             time.Duration
	MaxHalfOpenRequests uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold:    5,
		Timeout:             60 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Breaker wraps a Provider with a circuit breaker on its outbound API
// calls and records each call in the provider metrics. Webhook
// verification is local work and bypasses the breaker.
type Breaker struct {
	inner   Provider
	cb      *gobreaker.CircuitBreaker[any]
	metrics *metrics.Metrics
}

// NewBreaker creates a circuit-breaking decorator around p. A nil
// metrics disables instrumentation.
func NewBreaker(p Provider, config *BreakerConfig, m *metrics.Metrics) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: config.MaxHalfOpenRequests,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
	}

	return &Breaker{
		inner:   p,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
		metrics: m,
	}
}

// Name returns the wrapped provider's name.
func (b *Breaker) Name() string {
	return b.inner.Name()
}

func (b *Breaker) CreateIntent(ctx context.Context, amountMinorUnits int64, currency, description string) (*Intent, error) {
	res, err := b.execute("create_intent", func() (any, error) {
		return b.inner.CreateIntent(ctx, amountMinorUnits, currency, description)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Intent), nil
}

func (b *Breaker) CreateRefund(ctx context.Context, providerPaymentID string, amountMinorUnits int64, reason string) (*Refund, error) {
	res, err := b.execute("create_refund", func() (any, error) {
		return b.inner.CreateRefund(ctx, providerPaymentID, amountMinorUnits, reason)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Refund), nil
}

func (b *Breaker) VerifyWebhook(payload []byte, header http.Header) (*Event, error) {
	return b.inner.VerifyWebhook(payload, header)
}

func (b *Breaker) execute(operation string, fn func() (any, error)) (any, error) {
	start := time.Now()
	res, err := b.cb.Execute(fn)
	if b.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.ObserveProviderRequest(b.inner.Name(), operation, status, time.Since(start))
	}
	return res, err
}
