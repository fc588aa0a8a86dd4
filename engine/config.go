package engine

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate = validator.New()

// SupportedPairs are the assets the engine can trade
var SupportedPairs = []string{
	"EURUSD-OTC",
	"GBPUSD-OTC",
	"USDJPY-OTC",
	"AUDUSD-OTC",
	"USDCAD-OTC",
	"USDCHF-OTC",
	"EURJPY-OTC",
	"EURGBP-OTC",
	"GBPJPY-OTC",
}

// Aggressiveness levels
const (
	Conservative = "conservador"
	Balanced     = "balanceado"
	Aggressive   = "agresivo"
)

// Account types at the broker
const (
	AccountPractice = "PRACTICE"
	AccountReal     = "REAL"
)

// StartConfig is the strategy configuration forwarded to the engine.
// Email is taken from the identity, never from the client
type StartConfig struct {
	SelectedPairs  []string `json:"selectedPairs" validate:"required,min=1,max=9,unique,dive,oneof=EURUSD-OTC GBPUSD-OTC USDJPY-OTC AUDUSD-OTC USDCAD-OTC USDCHF-OTC EURJPY-OTC EURGBP-OTC GBPJPY-OTC"`
	PositionSize   int      `json:"positionSize" validate:"min=1,max=15"`
	Aggressiveness string   `json:"aggressiveness" validate:"oneof=conservador balanceado agresivo"`
	AccountType    string   `json:"accountType" validate:"oneof=PRACTICE REAL"`
	Password       string   `json:"password" validate:"required"`
	Email          string   `json:"email"`
}

// Normalize applies the defaults and casing the engine expects
func (c *StartConfig) Normalize() {
	c.Aggressiveness = strings.ToLower(strings.TrimSpace(c.Aggressiveness))
	if c.Aggressiveness == "" {
		c.Aggressiveness = Balanced
	}
	c.AccountType = strings.ToUpper(strings.TrimSpace(c.AccountType))
	if c.AccountType == "" {
		c.AccountType = AccountPractice
	}
	for i, pair := range c.SelectedPairs {
		c.SelectedPairs[i] = strings.ToUpper(strings.TrimSpace(pair))
	}
}

// Validate checks c after Normalize
func (c *StartConfig) Validate() error {
	return validate.Struct(c)
}
