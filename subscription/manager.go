package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmptyKey is returned when a lookup is attempted with an empty Key value
var ErrEmptyKey = errors.New("lookup key has an empty value")

// Key selects a single Record by one of its unique identifiers
type Key struct {
	column string
	Value  string
}

// ByUserID looks up by the identity subject
func ByUserID(userID string) Key {
	return Key{column: "user_id", Value: userID}
}

// BySubscriptionID looks up by Stripe's Subscription ID
func BySubscriptionID(subscriptionID string) Key {
	return Key{column: "external_subscription_id", Value: subscriptionID}
}

// ByCustomerID looks up by Stripe's Customer ID
func ByCustomerID(customerID string) Key {
	return Key{column: "external_customer_id", Value: customerID}
}

// Column is the profiles column the Key matches on
func (k Key) Column() string {
	return k.column
}

// Empty reports whether the Key cannot match any Record
func (k Key) Empty() bool {
	return k.column == "" || k.Value == ""
}

func (k Key) String() string {
	return fmt.Sprintf("%s=%s", k.column, k.Value)
}

// ManagerOptions contains the dependencies of Manager
type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Manager persists Records in PostgreSQL
type Manager struct {
	ManagerOptions
}

// NewManager returns a Manager and migrates the profiles and billing_events tables
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&Record{}, &AppliedEvent{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// Get returns the Record matched by key, or nil if nothing matches
func (m *Manager) Get(ctx context.Context, key Key) (*Record, error) {
	if key.Empty() {
		return nil, ErrEmptyKey
	}
	var rec Record
	result := m.DB.WithContext(ctx).
		Where(key.column+" = ?", key.Value).
		First(&rec)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.String("Key", key.String()),
			zap.Error(result.Error),
		)
		return nil, result.Error
	}

	return &rec, nil
}

// GetByUserID is a shorthand of Get(ctx, ByUserID(userID))
func (m *Manager) GetByUserID(ctx context.Context, userID string) (*Record, error) {
	return m.Get(ctx, ByUserID(userID))
}

// CreateTrial inserts a trial Record for the user unless one already exists, and returns whatever is stored afterward.
// Two concurrent first requests of the same user both end up with the same Record
func (m *Manager) CreateTrial(ctx context.Context, userID, email string, trialEndsAt time.Time) (*Record, error) {
	if len(userID) == 0 {
		return nil, ErrEmptyKey
	}
	rec := NewTrial(userID, email, trialEndsAt)
	result := m.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if result.Error != nil {
		m.Logger.Error("Unable to create trial record in database",
			zap.String("UserID", userID),
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create trial record")
	}
	stored, err := m.GetByUserID(ctx, userID)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot read back trial record")
	}
	if stored == nil {
		return nil, fmt.Errorf("trial record for %s vanished after insert", userID)
	}
	return stored, nil
}

// SetGracePeriodEnd writes end only while grace_period_end is still null. It reports whether the row was changed
func (m *Manager) SetGracePeriodEnd(ctx context.Context, userID string, end time.Time) (bool, error) {
	if len(userID) == 0 {
		return false, ErrEmptyKey
	}
	result := m.DB.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ?", userID).
		Where("grace_period_end IS NULL").
		Update("grace_period_end", end)
	if result.Error != nil {
		m.Logger.Error("Unable to set grace period in database",
			zap.String("UserID", userID),
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot set grace period")
	}
	return result.RowsAffected > 0, nil
}

// LambdaUpdateFunc is used when transaction is required for update. Return value determines if Manager should commit the changes.
// Note that current and desired are nil if no Record matched the Key, and must return false if that is the case
type LambdaUpdateFunc func(current *Record, desired *Record) (shouldSave bool)

// LambdaUpdate will perform a transactional update based on the lambda function. If the lambda signals shouldSave AND update was successful, it will return the new state.
// The selected Record will be locked with FOR UPDATE
func (m *Manager) LambdaUpdate(ctx context.Context, key Key, lambda LambdaUpdateFunc) (*Record, error) {
	return m.lambdaUpdate(ctx, key, nil, lambda)
}

// ApplyEvent is LambdaUpdate for a billing event. If the event is in the ledger already, ErrEventApplied is returned
// and lambda is not called. Otherwise the event is added to the ledger in the same transaction that saves the Record
func (m *Manager) ApplyEvent(ctx context.Context, key Key, event AppliedEvent, lambda LambdaUpdateFunc) (*Record, error) {
	if len(event.EventID) == 0 {
		return nil, fmt.Errorf("empty EventID is invalid")
	}
	return m.lambdaUpdate(ctx, key, &event, lambda)
}

func (m *Manager) lambdaUpdate(ctx context.Context, key Key, event *AppliedEvent, lambda LambdaUpdateFunc) (*Record, error) {
	if key.Empty() {
		return nil, ErrEmptyKey
	}
	var desired Record
	var shouldReturn bool
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Record
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(key.column+" = ?", key.Value).
			First(&current)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			lambda(nil, nil)
			return nil
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		// the row lock serializes deliveries of the same event, so the ledger read below sees the winner's insert
		if event != nil {
			var seen int64
			if countRes := tx.Model(&AppliedEvent{}).Where("event_id = ?", event.EventID).Count(&seen); countRes.Error != nil {
				return countRes.Error
			}
			if seen > 0 {
				return ErrEventApplied
			}
		}
		desired = current.Clone()
		if !lambda(&current, &desired) {
			return nil
		}
		if saveRes := tx.Save(&desired); saveRes.Error != nil {
			return saveRes.Error
		}
		if event != nil {
			event.UserID = desired.UserID
			if createRes := tx.Create(event); createRes.Error != nil {
				return createRes.Error
			}
		}
		shouldReturn = true
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if errors.Is(err, ErrEventApplied) {
		return nil, err
	}
	if err != nil {
		m.Logger.Error("Transactional update failed",
			zap.String("Key", key.String()),
			zap.Error(err),
		)
		// transaction failed, return nil new state
		return nil, extErrors.Wrap(err, "Cannot update subscription record")
	}
	if !shouldReturn {
		// shouldSave == false, return nil new state
		return nil, nil
	}
	// transaction succeed and shouldSave == true, return new state
	return &desired, nil
}

// Ping checks that the database is reachable
func (m *Manager) Ping(ctx context.Context) error {
	pool, err := m.DB.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}
