package subscription

import (
	"errors"
	"time"
)

// ErrEventApplied is returned by Manager.ApplyEvent when the billing event was applied before
var ErrEventApplied = errors.New("billing event was already applied")

// AppliedEvent remembers a billing event that changed a Record, keyed by the Stripe event ID
type AppliedEvent struct {
	EventID   string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Type      string    `gorm:"not null"`
	Created   time.Time `gorm:"not null"` // Stripe's creation time of the event
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName for the ledger of applied billing events
func (AppliedEvent) TableName() string {
	return "billing_events"
}
