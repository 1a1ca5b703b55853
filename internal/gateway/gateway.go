// Package gateway wraps the external payment processor behind a narrow
// interface so the rest of the ledger never touches provider types.
package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutSessionRequest asks the gateway for a one-off payment page. The
// donation id travels in the session metadata so the completion webhook can
// find its way back to the ledger.
type CheckoutSessionRequest struct {
	DonationID  uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// CheckoutSession is the gateway's handle for a one-off payment.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionRequest asks the gateway for a recurring billing subscription.
type SubscriptionRequest struct {
	CustomerID      string
	PaymentMethodID string
	PriceID         string
}

// Subscription is the gateway's handle for recurring billing.
type Subscription struct {
	ID              string
	LatestInvoiceID string
	NextActionURL   string
}

// Gateway is the outbound surface of the payment processor.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
