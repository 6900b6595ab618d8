package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Compile-time check ensuring StripeProvider satisfies Provider.
var _ Provider = (*StripeProvider)(nil)

// StripeProvider talks to the Stripe API. Every request carries the caller's
// context and a bounded HTTP timeout.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a Stripe client with its own HTTP client so the
// timeout is bounded regardless of global SDK state.
func NewStripeProvider(secretKey string, timeout time.Duration) *StripeProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
	return &StripeProvider{api: api}
}

// CreateCheckoutSession creates a single line-item card checkout session
// tagged with the order id as metadata, in payment mode.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(p.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.Description),
				},
				UnitAmount: stripe.Int64(p.Amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("order_id", p.OrderID)
	// Propagate the order id onto the payment intent as well, so intent
	// events can be resolved without the session fallback.
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: map[string]string{"order_id": p.OrderID},
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, &ProviderError{Op: "create checkout session", Err: err}
	}

	out := &CheckoutSession{URL: sess.URL}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}

// CancelPaymentIntent cancels a payment intent at the provider.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := s.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return &ProviderError{Op: "cancel payment intent", Err: err}
	}
	return nil
}
