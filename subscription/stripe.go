package subscription

import (
	"context"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// Metadata keys written on Checkout Sessions and read back by the billing webhook
const (
	MetadataUserID         = "userId"
	MetadataPlanType       = "planType"
	MetadataCustomerID     = "customer_id"
	MetadataSubscriptionID = "subscription_id"
)

// CheckoutOptions describes a subscription checkout for a user
type CheckoutOptions struct {
	UserID     string
	Email      string
	CustomerID string // reuse an existing Stripe customer when set
	Plan       Plan
	SuccessURL string
	CancelURL  string
}

// PaymentUpdateOptions describes a checkout that only collects a new payment method
type PaymentUpdateOptions struct {
	CustomerID     string
	SubscriptionID string
	SuccessURL     string
	CancelURL      string
}

// StripeGateway performs the outbound Stripe calls of the billing flow, each bounded by Timeout
type StripeGateway struct {
	client  *client.API
	timeout time.Duration
}

// NewStripeGateway wraps a Stripe client
func NewStripeGateway(sc *client.API, timeout time.Duration) (*StripeGateway, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("non-positive timeout is invalid")
	}
	return &StripeGateway{
		client:  sc,
		timeout: timeout,
	}, nil
}

// CreateCheckout starts a subscription mode Checkout Session and returns its ID
func (g *StripeGateway) CreateCheckout(ctx context.Context, opt CheckoutOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	subscriptionData := &stripe.CheckoutSessionSubscriptionDataParams{}
	subscriptionData.AddMetadata(MetadataUserID, opt.UserID)
	subscriptionData.AddMetadata(MetadataPlanType, string(opt.Plan.Type))

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(opt.Plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(opt.UserID),
		SubscriptionData:  subscriptionData,
		SuccessURL:        stripe.String(opt.SuccessURL),
		CancelURL:         stripe.String(opt.CancelURL),
	}
	if len(opt.CustomerID) > 0 {
		params.Customer = stripe.String(opt.CustomerID)
	} else if len(opt.Email) > 0 {
		params.CustomerEmail = stripe.String(opt.Email)
	}
	params.AddMetadata(MetadataUserID, opt.UserID)
	params.AddMetadata(MetadataPlanType, string(opt.Plan.Type))

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create checkout session on Stripe")
	}
	return session.ID, nil
}

// CreatePaymentUpdate starts a setup mode Checkout Session bound to the subscription and returns its ID
func (g *StripeGateway) CreatePaymentUpdate(ctx context.Context, opt PaymentUpdateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	setupData := &stripe.CheckoutSessionSetupIntentDataParams{}
	setupData.AddMetadata(MetadataCustomerID, opt.CustomerID)
	setupData.AddMetadata(MetadataSubscriptionID, opt.SubscriptionID)

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSetup)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Customer:           stripe.String(opt.CustomerID),
		SetupIntentData:    setupData,
		SuccessURL:         stripe.String(opt.SuccessURL),
		CancelURL:          stripe.String(opt.CancelURL),
	}

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create payment update session on Stripe")
	}
	return session.ID, nil
}

// SetDefaultPaymentMethod makes paymentMethodID the method future invoices of the subscription are charged to
func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
	}
	if _, err := g.client.Subscriptions.Update(subscriptionID, params); err != nil {
		return extErrors.Wrap(err, "Unable to update default payment method on Stripe")
	}
	return nil
}

// Ping checks that Stripe is reachable with the configured key
func (g *StripeGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.BalanceParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	if _, err := g.client.Balance.Get(params); err != nil {
		return extErrors.Wrap(err, "Stripe is unreachable")
	}
	return nil
}
