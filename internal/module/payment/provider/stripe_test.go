package provider

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

// eventJSON builds a signed-payload body. ConstructEvent rejects events whose
// api_version differs from the SDK's pinned version, so it is set explicitly.
func eventJSON(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"api_version": %q,
		"data": {"object": %s}
	}`, id, eventType, stripe.APIVersion, object))
}

func signedHeader(t *testing.T, payload []byte) http.Header {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)

	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig))
	return h
}

func testStripeProvider() *StripeProvider {
	return NewStripeProvider(&StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: testWebhookSecret,
	})
}

func TestStripeProvider_VerifyWebhook_InvalidSignature(t *testing.T) {
	p := testStripeProvider()
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	h := http.Header{}
	h.Set("Stripe-Signature", "t=1,v1=deadbeef")

	_, err := p.VerifyWebhook(payload, h)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Tampered payload with a signature computed over something else.
	_, err = p.VerifyWebhook([]byte(`{"id":"evt_2"}`), signedHeader(t, payload))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeProvider_VerifyWebhook_IntentSucceeded(t *testing.T) {
	p := testStripeProvider()
	payload := eventJSON("evt_1", "payment_intent.succeeded",
		`{"id": "pi_123", "status": "succeeded"}`)

	ev, err := p.VerifyWebhook(payload, signedHeader(t, payload))

	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventIntentSucceeded, ev.Type)
	assert.Equal(t, "payment_intent.succeeded", ev.RawType)
	assert.Equal(t, "pi_123", ev.ProviderPaymentID)
}

func TestStripeProvider_VerifyWebhook_IntentFailed(t *testing.T) {
	p := testStripeProvider()
	payload := eventJSON("evt_2", "payment_intent.payment_failed",
		`{"id": "pi_123", "last_payment_error": {"message": "Your card was declined."}}`)

	ev, err := p.VerifyWebhook(payload, signedHeader(t, payload))

	require.NoError(t, err)
	assert.Equal(t, EventIntentFailed, ev.Type)
	assert.Equal(t, "pi_123", ev.ProviderPaymentID)
	assert.Equal(t, "Your card was declined.", ev.FailureMessage)
}

func TestStripeProvider_VerifyWebhook_ChargeRefunded(t *testing.T) {
	p := testStripeProvider()
	payload := eventJSON("evt_3", "charge.refunded",
		`{"id": "ch_123", "payment_intent": "pi_123", "refunds": {"data": [{"id": "re_123"}]}}`)

	ev, err := p.VerifyWebhook(payload, signedHeader(t, payload))

	require.NoError(t, err)
	assert.Equal(t, EventChargeRefunded, ev.Type)
	assert.Equal(t, "pi_123", ev.ProviderPaymentID)
	assert.Equal(t, "re_123", ev.ProviderRefundID)
}

func TestStripeProvider_VerifyWebhook_UnhandledType(t *testing.T) {
	p := testStripeProvider()
	payload := eventJSON("evt_4", "customer.created", `{"id": "cus_123"}`)

	ev, err := p.VerifyWebhook(payload, signedHeader(t, payload))

	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Type)
	assert.Equal(t, "customer.created", ev.RawType)
}

func TestStripeProvider_CreateIntent_InvalidAmount(t *testing.T) {
	p := testStripeProvider()

	ctx := context.Background()

	_, err := p.CreateIntent(ctx, 0, "usd", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = p.CreateRefund(ctx, "pi_123", -1, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
