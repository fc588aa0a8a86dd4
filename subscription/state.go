package subscription

import "time"

// State is the closed set of access states a Record can be in. It is derived once per evaluation
// with StateOf and inspected with a type switch
type State interface {
	Name() string
	isState()
}

// Missing means the user has no Record yet
type Missing struct{}

// Trial is a user on the free trial, expired or not
type Trial struct {
	EndsAt   time.Time
	GraceEnd *time.Time
}

// Active is a paying user
type Active struct {
	Plan PlanType
}

// PaymentFailed is a paying user whose last charge failed
type PaymentFailed struct {
	GraceEnd    *time.Time
	LastFailure *time.Time
	Failures    int
}

// Canceled is a user whose subscription ended
type Canceled struct{}

// Unknown carries a stored status outside of the known set
type Unknown struct {
	Status Status
}

func (Missing) Name() string       { return "missing" }
func (Trial) Name() string         { return string(StatusTrial) }
func (Active) Name() string        { return string(StatusActive) }
func (PaymentFailed) Name() string { return string(StatusPaymentFailed) }
func (Canceled) Name() string      { return string(StatusCanceled) }
func (Unknown) Name() string       { return "unknown" }

func (Missing) isState()       {}
func (Trial) isState()         {}
func (Active) isState()        {}
func (PaymentFailed) isState() {}
func (Canceled) isState()      {}
func (Unknown) isState()       {}

// StateOf classifies r. A nil Record is Missing
func StateOf(r *Record) State {
	if r == nil {
		return Missing{}
	}
	switch r.SubscriptionStatus {
	case StatusTrial:
		return Trial{
			EndsAt:   r.TrialEndsAt,
			GraceEnd: copyTime(r.GracePeriodEnd),
		}
	case StatusActive:
		return Active{
			Plan: r.PlanType,
		}
	case StatusPaymentFailed:
		return PaymentFailed{
			GraceEnd:    copyTime(r.GracePeriodEnd),
			LastFailure: copyTime(r.LastPaymentFailure),
			Failures:    r.PaymentFailureCount,
		}
	case StatusCanceled:
		return Canceled{}
	default:
		return Unknown{
			Status: r.SubscriptionStatus,
		}
	}
}
