package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider implements the Provider interface for Stripe.
type StripeProvider struct {
	sc            *client.API
	webhookSecret string
}

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// NewStripeProvider creates a new Stripe provider. The API client is a
// constructed instance, not the SDK's process-wide key.
func NewStripeProvider(config *StripeConfig) *StripeProvider {
	sc := &client.API{}
	sc.Init(config.APIKey, nil)
	return &StripeProvider{
		sc:            sc,
		webhookSecret: config.WebhookSecret,
	}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amountMinorUnits int64, currency, description string) (*Intent, error) {
	if amountMinorUnits <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinorUnits),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx

	pi, err := p.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

func (p *StripeProvider) CreateRefund(ctx context.Context, providerPaymentID string, amountMinorUnits int64, reason string) (*Refund, error) {
	if amountMinorUnits <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(providerPaymentID),
		Amount:        stripe.Int64(amountMinorUnits),
	}
	if reason != "" {
		params.Metadata = map[string]string{"reason": reason}
	}
	params.Context = ctx

	r, err := p.sc.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	return &Refund{
		ID:     r.ID,
		Amount: r.Amount,
		Status: string(r.Status),
	}, nil
}

// VerifyWebhook verifies the Stripe-Signature header against the shared
// webhook secret and maps the event to a provider-neutral form.
func (p *StripeProvider) VerifyWebhook(payload []byte, header http.Header) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{
		ID:      event.ID,
		RawType: string(event.Type),
		Type:    EventUnknown,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		out.ProviderPaymentID = pi.ID
		switch event.Type {
		case "payment_intent.succeeded":
			out.Type = EventIntentSucceeded
		case "payment_intent.payment_failed":
			out.Type = EventIntentFailed
			if pi.LastPaymentError != nil {
				out.FailureMessage = pi.LastPaymentError.Msg
			}
		case "payment_intent.canceled":
			out.Type = EventIntentCanceled
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("unmarshal charge: %w", err)
		}
		out.Type = EventChargeRefunded
		if ch.PaymentIntent != nil {
			out.ProviderPaymentID = ch.PaymentIntent.ID
		}
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			out.ProviderRefundID = ch.Refunds.Data[0].ID
		}
	}

	return out, nil
}
