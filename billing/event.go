package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inverseneural/lab/subscription"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
)

// Stripe event types handled by the Processor
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventPaymentSucceeded       = "invoice.payment_succeeded"
	EventPaymentFailed          = "invoice.payment_failed"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
	EventSetupIntentSucceeded   = "setup_intent.succeeded"
	paymentMethodUpdateCheckout = stripe.CheckoutSessionModeSetup
)

// Payload is the flattened part of a Stripe event the transitions work on
type Payload struct {
	EventID string
	Type    string
	Created time.Time

	UserID         string
	PlanType       subscription.PlanType
	CustomerID     string
	SubscriptionID string

	AttemptCount    int64
	ProcessorStatus stripe.SubscriptionStatus

	PaymentMethodID     string
	BoundSubscriptionID string // subscription the new payment method is meant for

	// Skip is set with a reason when the event needs no state change
	Skip string
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// Decode reads the Stripe object of e into a Payload. Unknown event types decode to a Payload with only the envelope set
func Decode(e stripe.Event) (Payload, error) {
	p := Payload{
		EventID: e.ID,
		Type:    e.Type,
		Created: time.Unix(e.Created, 0).UTC(),
	}
	if e.ID == "" {
		return p, fmt.Errorf("event has no id")
	}
	if _, known := transitions[e.Type]; !known {
		return p, nil
	}
	if e.Data == nil || len(e.Data.Raw) == 0 {
		return p, fmt.Errorf("event %s has no data object", e.ID)
	}

	switch e.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(e.Data.Raw, &session); err != nil {
			return p, extErrors.Wrap(err, "Cannot decode checkout session")
		}
		if session.Mode == paymentMethodUpdateCheckout {
			p.Skip = "setup mode checkout is handled by setup_intent.succeeded"
			return p, nil
		}
		p.UserID = session.Metadata[subscription.MetadataUserID]
		if p.UserID == "" {
			p.UserID = session.ClientReferenceID
		}
		p.PlanType = subscription.PlanType(session.Metadata[subscription.MetadataPlanType])
		p.CustomerID = customerID(session.Customer)
		p.SubscriptionID = subscriptionID(session.Subscription)

	case EventPaymentSucceeded, EventPaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(e.Data.Raw, &invoice); err != nil {
			return p, extErrors.Wrap(err, "Cannot decode invoice")
		}
		p.CustomerID = customerID(invoice.Customer)
		p.SubscriptionID = subscriptionID(invoice.Subscription)
		p.AttemptCount = invoice.AttemptCount

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(e.Data.Raw, &sub); err != nil {
			return p, extErrors.Wrap(err, "Cannot decode subscription")
		}
		p.CustomerID = customerID(sub.Customer)
		p.SubscriptionID = sub.ID
		p.ProcessorStatus = sub.Status

	case EventSetupIntentSucceeded:
		var intent stripe.SetupIntent
		if err := json.Unmarshal(e.Data.Raw, &intent); err != nil {
			return p, extErrors.Wrap(err, "Cannot decode setup intent")
		}
		// only setup intents created by the payment method update flow carry the binding
		p.CustomerID = intent.Metadata[subscription.MetadataCustomerID]
		p.BoundSubscriptionID = intent.Metadata[subscription.MetadataSubscriptionID]
		if intent.PaymentMethod != nil {
			p.PaymentMethodID = intent.PaymentMethod.ID
		}
		if p.CustomerID == "" || p.BoundSubscriptionID == "" {
			p.Skip = "setup intent is not bound to a subscription"
		}
	}
	return p, nil
}
