package subscription

import (
	"fmt"
)

// Plan describes a purchasable monthly plan
type Plan struct {
	Type          PlanType `json:"type"`
	Name          string   `json:"name"`
	AmountInCents int64    `json:"amountInCents"`
	Currency      string   `json:"currency"`
	Assets        int      `json:"assets"` // number of trading pairs the plan may run
	PriceID       string   `json:"-"`      // Corresponds to Stripe's monthly Price ID
}

var definedPlans = []Plan{
	{Type: PlanBasic, Name: "Basic", AmountInCents: 2900, Currency: "usd", Assets: 5},
	{Type: PlanPro, Name: "Pro", AmountInCents: 4900, Currency: "usd", Assets: 7},
	{Type: PlanElite, Name: "Elite", AmountInCents: 9900, Currency: "usd", Assets: 9},
}

// Catalog is the list of plans bound to their Stripe prices
type Catalog struct {
	plans   []Plan
	byType  map[PlanType]int
	byPrice map[string]int
}

// NewCatalog binds every defined plan to a Stripe Price ID. All plans must have one
func NewCatalog(priceIDs map[PlanType]string) (*Catalog, error) {
	c := &Catalog{
		plans:   make([]Plan, 0, len(definedPlans)),
		byType:  make(map[PlanType]int),
		byPrice: make(map[string]int),
	}
	for _, p := range definedPlans {
		priceID := priceIDs[p.Type]
		if len(priceID) == 0 {
			return nil, fmt.Errorf("no Stripe price configured for plan %s", p.Type)
		}
		if _, dup := c.byPrice[priceID]; dup {
			return nil, fmt.Errorf("Stripe price %s is bound to more than one plan", priceID)
		}
		p.PriceID = priceID
		c.plans = append(c.plans, p)
		c.byType[p.Type] = len(c.plans) - 1
		c.byPrice[priceID] = len(c.plans) - 1
	}
	return c, nil
}

// List returns the plans in ascending price
func (c *Catalog) List() []Plan {
	plans := make([]Plan, len(c.plans))
	copy(plans, c.plans)
	return plans
}

// Lookup returns the purchasable plan of the given type
func (c *Catalog) Lookup(t PlanType) (Plan, bool) {
	index, ok := c.byType[t]
	if !ok {
		return Plan{}, false
	}
	return c.plans[index], true
}

// LookupByPrice returns the plan bound to a Stripe Price ID
func (c *Catalog) LookupByPrice(priceID string) (Plan, bool) {
	index, ok := c.byPrice[priceID]
	if !ok {
		return Plan{}, false
	}
	return c.plans[index], true
}
