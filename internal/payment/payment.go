// Package payment implements payment reconciliation against the Stripe API:
// checkout session creation on the synchronous path and webhook intake on the
// asynchronous one. All provider credentials live in the Config injected at
// construction.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Config holds the provider credentials and checkout parameters. It is
// populated from application configuration, never from ad-hoc environment
// reads.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// CheckoutParams describes a checkout session to create with the provider.
// Amount is in minor currency units.
type CheckoutParams struct {
	OrderID     string
	Amount      int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider's response to session creation.
type CheckoutSession struct {
	// URL is where the customer completes the payment.
	URL string
	// PaymentIntentID is the provider reference stored on the order.
	PaymentIntentID string
}

// Provider is the external payment collaborator. Calls are expected to apply
// a bounded timeout and may fail transiently.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

// ErrAlreadyPaid is returned when a checkout session is requested for an
// order whose payment has already settled. No provider call is made.
var ErrAlreadyPaid = errors.New("order already paid")

// ProviderError wraps a failure talking to the payment provider. It is
// surfaced to callers as a retryable external-dependency error.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SignatureError indicates an inbound webhook payload failed authenticity
// verification (malformed payload or bad signature). The event must not be
// processed.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %v", e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }
