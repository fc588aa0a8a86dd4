package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrices() map[PlanType]string {
	return map[PlanType]string{
		PlanBasic: "price_basic",
		PlanPro:   "price_pro",
		PlanElite: "price_elite",
	}
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(testPrices())
	require.NoError(t, err)

	plans := c.List()
	require.Len(t, plans, 3)
	assert.Equal(t, PlanBasic, plans[0].Type)
	assert.Equal(t, int64(4900), plans[1].AmountInCents)
	assert.Equal(t, 9, plans[2].Assets)

	pro, ok := c.Lookup(PlanPro)
	require.True(t, ok)
	assert.Equal(t, "price_pro", pro.PriceID)
	assert.Equal(t, 7, pro.Assets)

	_, ok = c.Lookup(PlanTrial)
	assert.False(t, ok)

	elite, ok := c.LookupByPrice("price_elite")
	require.True(t, ok)
	assert.Equal(t, PlanElite, elite.Type)

	// List returns a copy
	plans[0].PriceID = "tampered"
	basic, _ := c.Lookup(PlanBasic)
	assert.Equal(t, "price_basic", basic.PriceID)
}

func TestCatalogMissingPrice(t *testing.T) {
	prices := testPrices()
	delete(prices, PlanElite)
	_, err := NewCatalog(prices)
	assert.Error(t, err)
}

func TestCatalogDuplicatePrice(t *testing.T) {
	prices := testPrices()
	prices[PlanElite] = prices[PlanPro]
	_, err := NewCatalog(prices)
	assert.Error(t, err)
}
