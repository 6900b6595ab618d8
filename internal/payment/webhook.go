package payment

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Webhook event types the reconciliation service acts on. Any other verified
// type is accepted and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventIntentSucceeded   = "payment_intent.succeeded"
	EventIntentFailed      = "payment_intent.payment_failed"
)

// Event is a verified, normalized webhook event. OrderID comes from the
// nested object's metadata and may be empty; IntentID is the payment-intent
// reference used as the secondary lookup key.
type Event struct {
	ID       string
	Type     string
	OrderID  string
	IntentID string
}

// ParseEvent verifies the payload against the signing secret and extracts the
// fields reconciliation needs. Verification failures of any kind return a
// *SignatureError and the event must be rejected without processing.
func ParseEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, &SignatureError{Err: err}
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}

	var objectID, paymentIntent string
	d := jx.DecodeBytes(ev.Data.Raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			objectID = s
			return nil
		case "payment_intent":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			paymentIntent = s
			return nil
		case "metadata":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, mk string) error {
				if mk != "order_id" {
					return d.Skip()
				}
				s, err := d.Str()
				if err != nil {
					return err
				}
				out.OrderID = s
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode event object")
	}

	// Payment-intent events carry the intent id as the object id; checkout
	// session events reference it through the payment_intent field.
	if paymentIntent != "" {
		out.IntentID = paymentIntent
	} else if out.Type == EventIntentSucceeded || out.Type == EventIntentFailed {
		out.IntentID = objectID
	}
	return out, nil
}
