package provider

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// Provider errors.
var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// EventType is a provider-neutral webhook event classification.
type EventType string

const (
	EventIntentSucceeded EventType = "intent_succeeded"
	EventIntentFailed    EventType = "intent_failed"
	EventIntentCanceled  EventType = "intent_canceled"
	EventChargeRefunded  EventType = "charge_refunded"
	EventUnknown         EventType = "unknown"
)

// Event is a verified, parsed webhook notification.
type Event struct {
	ID                string // provider's event ID, unique per provider
	Type              EventType
	RawType           string // provider's own event type string
	ProviderPaymentID string
	ProviderRefundID  string
	FailureMessage    string
}

// Intent is the provider's acknowledgment of a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Refund is the provider's acknowledgment of a created refund.
type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Provider abstracts a third-party charge API. The rest of the core never
// imports a concrete provider SDK type, so providers can be substituted or
// replaced with test doubles.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// CreateIntent creates a payment intent for the given total amount in
	// minor currency units.
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency, description string) (*Intent, error)

	// CreateRefund refunds part or all of a charge.
	CreateRefund(ctx context.Context, providerPaymentID string, amountMinorUnits int64, reason string) (*Refund, error)

	// VerifyWebhook checks the delivery signature and parses the payload
	// into a provider-neutral event. Returns ErrInvalidSignature when the
	// signature does not verify.
	VerifyWebhook(payload []byte, header http.Header) (*Event, error)
}

// Registry manages payment providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register registers a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.New("provider not found: " + name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
