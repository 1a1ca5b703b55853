// Package stripe adapts Stripe webhook payloads to normalized events.
package stripe

import (
	"encoding/json"
	"fmt"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	hook "orphancare/internal/webhook"
)

// Verifier verifies Stripe webhook signatures with the endpoint's shared
// secret and maps payloads into hook.Event values.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyAndParse implements hook.Verifier.
func (v *Verifier) VerifyAndParse(payload []byte, signature string) (*hook.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return nil, fmt.Errorf("stripe signature invalid: %w", err)
	}

	normalized := &hook.Event{
		ID:   event.ID,
		Type: hook.EventType(event.Type),
	}

	switch hook.EventType(event.Type) {
	case hook.EventInvoicePaymentSucceeded, hook.EventInvoicePaymentFailed:
		var invoice stripego.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("malformed invoice payload: %w", err)
		}
		normalized.InvoiceID = invoice.ID
		if invoice.Subscription != nil {
			normalized.SubscriptionID = invoice.Subscription.ID
		}

	case hook.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("malformed subscription payload: %w", err)
		}
		normalized.SubscriptionID = sub.ID

	case hook.EventCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("malformed checkout session payload: %w", err)
		}
		normalized.DonationID = session.Metadata["donation_id"]
	}

	return normalized, nil
}
