package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"kalyekart-order-service/internal/model"
)

// Payment intent statuses the order service acts on.
const (
	IntentSucceeded             = "succeeded"
	IntentCanceled              = "canceled"
	IntentRequiresPaymentMethod = "requires_payment_method"
)

// Intent mirrors the subset of a payment intent the order service reads.
type Intent struct {
	ID           string
	Amount       int64
	Currency     string
	Status       string
	ClientSecret string
	Metadata     map[string]string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, metadata map[string]string) (*Intent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeClient creates and reads payment intents through stripe-go.
type StripeClient struct {
	intents  *paymentintent.Client
	currency string
}

// NewStripeClient builds a client for the given API base. An empty baseURL
// uses Stripe's default endpoint.
func NewStripeClient(baseURL, secretKey, currency string) *StripeClient {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	return &StripeClient{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Key: secretKey,
		},
		currency: currency,
	}
}

func (s *StripeClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, metadata map[string]string) (*Intent, error) {
	if s.intents.Key == "" {
		return nil, fmt.Errorf("%w: gateway not configured", model.ErrPayment)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return toIntent(pi), nil
}

func (s *StripeClient) RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	if s.intents.Key == "" {
		return nil, fmt.Errorf("%w: gateway not configured", model.ErrPayment)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", model.ErrPayment)
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.intents.Get(id, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
	}
}

func wrapStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("%w: %s", model.ErrPayment, se.Msg)
	}
	return fmt.Errorf("%w: %v", model.ErrPayment, err)
}
