package external

import (
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// NewStripeClient returns a Stripe API client whose HTTP calls are bounded by timeout
func NewStripeClient(key string, timeout time.Duration) *client.API {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	sc := &client.API{}
	sc.Init(key, stripe.NewBackends(httpClient))
	return sc
}
