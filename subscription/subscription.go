package subscription

import (
	"math"
	"time"
)

// Record is the single subscription row owned by a user. The billing webhook writes it
// and the access guard reads it on every request
type Record struct {
	UserID                 string     `json:"userId" gorm:"primaryKey"`
	Email                  string     `json:"email"`
	SubscriptionStatus     Status     `json:"subscriptionStatus" gorm:"not null;default:trial"`
	PlanType               PlanType   `json:"planType"`
	TrialEndsAt            time.Time  `json:"trialEndsAt" gorm:"not null"`
	GracePeriodEnd         *time.Time `json:"gracePeriodEnd"`
	PaymentFailureCount    int        `json:"paymentFailureCount" gorm:"not null;default:0"`
	LastPaymentFailure     *time.Time `json:"lastPaymentFailure"`
	ExternalCustomerID     string     `json:"-" gorm:"index"` // Corresponds to Stripe's Customer ID
	ExternalSubscriptionID string     `json:"-" gorm:"index"` // Corresponds to Stripe's Subscription ID
	LastEventID            string     `json:"-"`              // ID of the last billing event applied
	LastEventAt            *time.Time `json:"-"`              // Creation time of the last billing event applied
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// TableName keeps the table name of the hosted auth schema
func (Record) TableName() string {
	return "profiles"
}

// NewTrial returns a fresh trial Record for the user
func NewTrial(userID, email string, trialEndsAt time.Time) *Record {
	return &Record{
		UserID:             userID,
		Email:              email,
		SubscriptionStatus: StatusTrial,
		PlanType:           PlanTrial,
		TrialEndsAt:        trialEndsAt,
	}
}

// ClearFailure resets every payment failure field
func (r *Record) ClearFailure() {
	r.GracePeriodEnd = nil
	r.PaymentFailureCount = 0
	r.LastPaymentFailure = nil
}

// Clone returns a deep copy so that mutations do not leak through shared pointers
func (r Record) Clone() Record {
	r.GracePeriodEnd = copyTime(r.GracePeriodEnd)
	r.LastPaymentFailure = copyTime(r.LastPaymentFailure)
	r.LastEventAt = copyTime(r.LastEventAt)
	return r
}

// InGrace reports whether a grace window is open at now
func (r *Record) InGrace(now time.Time) bool {
	return r.GracePeriodEnd != nil && !now.After(*r.GracePeriodEnd)
}

// GraceDaysLeft rounds the remaining grace window up to whole days, 0 when not in grace
func (r *Record) GraceDaysLeft(now time.Time) int {
	if !r.InGrace(now) {
		return 0
	}
	return int(math.Ceil(r.GracePeriodEnd.Sub(now).Hours() / 24))
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
