package billing

import (
	"time"

	"github.com/inverseneural/lab/subscription"

	"github.com/stripe/stripe-go/v72"
)

// Env is what a transition may know besides the Record and the Payload
type Env struct {
	Now          time.Time
	PaymentGrace time.Duration
}

// Transition computes the next Record. It must not have side effects
type Transition func(rec subscription.Record, p Payload, env Env) subscription.Record

type transition struct {
	key   func(p Payload) subscription.Key
	apply Transition
	// reattach is set when the processor has to update the default payment method at Stripe first
	reattach bool
}

func byUserID(p Payload) subscription.Key         { return subscription.ByUserID(p.UserID) }
func bySubscriptionID(p Payload) subscription.Key { return subscription.BySubscriptionID(p.SubscriptionID) }
func byCustomerID(p Payload) subscription.Key     { return subscription.ByCustomerID(p.CustomerID) }

var transitions = map[string]transition{
	EventCheckoutCompleted:    {key: byUserID, apply: CheckoutCompleted},
	EventPaymentSucceeded:     {key: bySubscriptionID, apply: PaymentSucceeded},
	EventPaymentFailed:        {key: bySubscriptionID, apply: PaymentFailed},
	EventSubscriptionUpdated:  {key: bySubscriptionID, apply: SubscriptionUpdated},
	EventSubscriptionDeleted:  {key: bySubscriptionID, apply: SubscriptionDeleted},
	EventSetupIntentSucceeded: {key: byCustomerID, apply: PaymentMethodUpdated, reattach: true},
}

// downgrades reports whether p takes a paying record out of active
func downgrades(p Payload) bool {
	switch p.Type {
	case EventPaymentFailed:
		return true
	case EventSubscriptionUpdated:
		return p.ProcessorStatus == stripe.SubscriptionStatusPastDue || p.ProcessorStatus == stripe.SubscriptionStatusUnpaid
	}
	return false
}

func activate(rec subscription.Record) subscription.Record {
	rec.SubscriptionStatus = subscription.StatusActive
	rec.ClearFailure()
	return rec
}

func seedPaymentGrace(rec *subscription.Record, env Env) {
	if rec.SubscriptionStatus == subscription.StatusPaymentFailed && rec.GracePeriodEnd != nil {
		return
	}
	end := env.Now.Add(env.PaymentGrace)
	rec.GracePeriodEnd = &end
}

// CheckoutCompleted binds the record to the Stripe customer and subscription and activates the purchased plan
func CheckoutCompleted(rec subscription.Record, p Payload, env Env) subscription.Record {
	if p.PlanType.Purchasable() {
		rec.PlanType = p.PlanType
	}
	if p.CustomerID != "" {
		rec.ExternalCustomerID = p.CustomerID
	}
	if p.SubscriptionID != "" {
		rec.ExternalSubscriptionID = p.SubscriptionID
	}
	return activate(rec)
}

// PaymentSucceeded activates the record and clears every failure field
func PaymentSucceeded(rec subscription.Record, p Payload, env Env) subscription.Record {
	return activate(rec)
}

// PaymentFailed moves the record into payment_failed. The grace window is fixed when the failure is first observed,
// later retries of the same invoice do not extend it
func PaymentFailed(rec subscription.Record, p Payload, env Env) subscription.Record {
	if p.AttemptCount > 0 {
		rec.PaymentFailureCount = int(p.AttemptCount)
	} else {
		rec.PaymentFailureCount++
	}
	seedPaymentGrace(&rec, env)
	now := env.Now
	rec.LastPaymentFailure = &now
	rec.SubscriptionStatus = subscription.StatusPaymentFailed
	return rec
}

// SubscriptionUpdated maps the Stripe subscription status onto the record
func SubscriptionUpdated(rec subscription.Record, p Payload, env Env) subscription.Record {
	switch p.ProcessorStatus {
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		seedPaymentGrace(&rec, env)
		rec.SubscriptionStatus = subscription.StatusPaymentFailed
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		rec = activate(rec)
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		rec.SubscriptionStatus = subscription.StatusCanceled
		rec.GracePeriodEnd = nil
	}
	return rec
}

// SubscriptionDeleted cancels the record and unbinds it from the Stripe subscription
func SubscriptionDeleted(rec subscription.Record, p Payload, env Env) subscription.Record {
	rec.SubscriptionStatus = subscription.StatusCanceled
	rec.ExternalSubscriptionID = ""
	rec.GracePeriodEnd = nil
	return rec
}

// PaymentMethodUpdated activates the record once a new payment method was attached
func PaymentMethodUpdated(rec subscription.Record, p Payload, env Env) subscription.Record {
	return activate(rec)
}
