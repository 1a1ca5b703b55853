package gateway

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	pkgerrors "orphancare/pkg/errors"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api        *client.API
	priceID    string
	successURL string
	cancelURL  string
}

// NewStripeGateway builds a gateway with the given secret key. priceID is the
// recurring price used for sponsorship subscriptions.
func NewStripeGateway(secretKey, priceID, successURL, cancelURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:        api,
		priceID:    priceID,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount.Mul(centsPerUnit).IntPart()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("donation_id", req.DonationID.String())

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create checkout session")
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	priceID := req.PriceID
	if priceID == "" {
		priceID = g.priceID
	}

	params := &stripe.SubscriptionParams{
		Params:               stripe.Params{Context: ctx},
		Customer:             stripe.String(req.CustomerID),
		DefaultPaymentMethod: stripe.String(req.PaymentMethodID),
		PaymentBehavior:      stripe.String("allow_incomplete"),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create subscription")
	}

	result := &Subscription{ID: sub.ID}
	if sub.LatestInvoice != nil {
		result.LatestInvoiceID = sub.LatestInvoice.ID
		if pi := sub.LatestInvoice.PaymentIntent; pi != nil && pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			result.NextActionURL = pi.NextAction.RedirectToURL.URL
		}
	}
	return result, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := g.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return pkgerrors.Wrap(err, "failed to cancel subscription")
	}
	return nil
}

// centsPerUnit converts whole currency units to the gateway's minor units.
var centsPerUnit = decimal.NewFromInt(100)
