package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      string
	intentErr error
	refundErr error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CreateIntent(ctx context.Context, amount int64, currency, description string) (*Intent, error) {
	s.calls++
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return &Intent{ID: "pi_stub", Amount: amount, Currency: currency}, nil
}

func (s *stubProvider) CreateRefund(ctx context.Context, providerPaymentID string, amount int64, reason string) (*Refund, error) {
	s.calls++
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	return &Refund{ID: "re_stub", Amount: amount}, nil
}

func (s *stubProvider) VerifyWebhook(payload []byte, header http.Header) (*Event, error) {
	return &Event{ID: "evt_stub"}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "stripe"})
	r.Register(&stubProvider{name: "fake"})

	p, err := r.Get("stripe")
	require.NoError(t, err)
	assert.Equal(t, "stripe", p.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"stripe", "fake"}, r.List())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := &stubProvider{name: "stripe"}
	second := &stubProvider{name: "stripe"}
	r.Register(first)
	r.Register(second)

	p, err := r.Get("stripe")
	require.NoError(t, err)
	assert.Same(t, second, p.(*stubProvider))
	assert.Len(t, r.List(), 1)
}
