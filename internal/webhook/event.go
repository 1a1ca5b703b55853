package webhook

// EventType identifies a gateway event. Values mirror the gateway's own event
// names so logs stay greppable against gateway dashboards.
type EventType string

const (
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventSubscriptionDeleted     EventType = "customer.subscription.deleted"
	EventCheckoutCompleted       EventType = "checkout.session.completed"
)

// Event is a gateway event normalized to the fields the processor needs.
// Exactly one of SubscriptionID/DonationID is set depending on the type.
type Event struct {
	ID             string
	Type           EventType
	SubscriptionID string
	InvoiceID      string
	DonationID     string
}

// Verifier authenticates a raw webhook payload against its signature header
// and parses it into a normalized Event. Implementations must not trust any
// payload field before the signature checks out.
type Verifier interface {
	VerifyAndParse(payload []byte, signature string) (*Event, error)
}
