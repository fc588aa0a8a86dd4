package subscription

// Status is the custom type to define the billing status stored on a Record
type Status string

// Defining the statuses a Record can be in
const (
	StatusTrial         Status = "trial"
	StatusActive        Status = "active"
	StatusPaymentFailed Status = "payment_failed"
	StatusCanceled      Status = "canceled"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPaymentFailed, StatusCanceled:
		return true
	}
	return false
}

// PlanType identifies what the user is paying for. PlanNone is the null plan
type PlanType string

// Defining constants
const (
	PlanNone  PlanType = ""
	PlanTrial PlanType = "trial"
	PlanBasic PlanType = "basic"
	PlanPro   PlanType = "pro"
	PlanElite PlanType = "elite"
)

// Purchasable reports whether a checkout can be started for the plan
func (p PlanType) Purchasable() bool {
	switch p {
	case PlanBasic, PlanPro, PlanElite:
		return true
	}
	return false
}
