package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inverseneural/lab/broker"
	"github.com/inverseneural/lab/subscription"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// Outcome describes what processing did with an event
type Outcome string

// Defining outcomes
const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeMiss      Outcome = "miss"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
)

// Store is the part of subscription.Manager the Processor needs
type Store interface {
	Get(ctx context.Context, key subscription.Key) (*subscription.Record, error)
	ApplyEvent(ctx context.Context, key subscription.Key, event subscription.AppliedEvent, lambda subscription.LambdaUpdateFunc) (*subscription.Record, error)
}

// PaymentMethods performs the outbound Stripe call of the payment method update
type PaymentMethods interface {
	SetDefaultPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error
}

var _ Store = &subscription.Manager{}
var _ PaymentMethods = &subscription.StripeGateway{}

// ProcessorOptions contains the dependencies of Processor
type ProcessorOptions struct {
	Store          Store
	PaymentMethods PaymentMethods
	Broker         broker.Broker
	Logger         *zap.Logger
	PaymentGrace   time.Duration
	Now            func() time.Time
}

// Processor applies billing events to subscription records
type Processor struct {
	ProcessorOptions
}

// NewProcessor returns a Processor
func NewProcessor(option ProcessorOptions) (*Processor, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.PaymentMethods == nil {
		return nil, fmt.Errorf("nil PaymentMethods is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.PaymentGrace <= 0 {
		return nil, fmt.Errorf("non-positive PaymentGrace is invalid")
	}
	if option.Broker == nil {
		option.Broker = broker.NoopBroker{}
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	return &Processor{
		ProcessorOptions: option,
	}, nil
}

// Process applies the transition of p.Type to the matching Record. An error means the event should be redelivered
func (pr *Processor) Process(ctx context.Context, p Payload) (Outcome, error) {
	logger := pr.Logger.With(
		zap.String("EventID", p.EventID),
		zap.String("EventType", p.Type),
	)

	t, ok := transitions[p.Type]
	if !ok {
		logger.Debug("Ignoring unhandled event type")
		return OutcomeIgnored, nil
	}
	if p.Skip != "" {
		logger.Debug("Ignoring event", zap.String("Reason", p.Skip))
		return OutcomeIgnored, nil
	}

	key := t.key(p)
	logger = logger.With(zap.String("Key", key.String()))
	if key.Empty() {
		logger.Warn("Event carries no lookup key, acknowledging")
		return OutcomeMiss, nil
	}

	if t.reattach {
		outcome, err := pr.reattach(ctx, logger, key, p)
		if err != nil {
			return "", err
		}
		if outcome != OutcomeApplied {
			return outcome, nil
		}
	}

	env := Env{
		Now:          pr.Now(),
		PaymentGrace: pr.PaymentGrace,
	}
	outcome := OutcomeMiss
	var from subscription.Status
	applied := subscription.AppliedEvent{
		EventID: p.EventID,
		Type:    p.Type,
		Created: p.Created,
	}
	updated, err := pr.Store.ApplyEvent(ctx, key, applied, func(current, desired *subscription.Record) bool {
		if current == nil {
			return false
		}
		if current.LastEventID == p.EventID {
			outcome = OutcomeDuplicate
			return false
		}
		if current.LastEventAt != nil {
			if p.Created.Before(*current.LastEventAt) {
				outcome = OutcomeStale
				return false
			}
			// created has a resolution of one second. A failure sharing its second with the event that
			// activated the record is taken as the older of the two
			if p.Created.Equal(*current.LastEventAt) &&
				current.SubscriptionStatus == subscription.StatusActive &&
				downgrades(p) {
				outcome = OutcomeStale
				return false
			}
		}
		from = current.SubscriptionStatus
		*desired = t.apply(current.Clone(), p, env)
		created := p.Created
		desired.LastEventID = p.EventID
		desired.LastEventAt = &created
		outcome = OutcomeApplied
		return true
	})
	if errors.Is(err, subscription.ErrEventApplied) {
		outcome, err = OutcomeDuplicate, nil
	}
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot apply billing event")
	}

	switch outcome {
	case OutcomeMiss:
		logger.Warn("No subscription record matches event, acknowledging")
	case OutcomeDuplicate:
		logger.Info("Event was already applied")
	case OutcomeStale:
		logger.Info("Event is older than the last applied event, skipping",
			zap.Time("Created", p.Created),
		)
	case OutcomeApplied:
		logger.Info("Billing event applied",
			zap.String("UserID", updated.UserID),
			zap.String("From", string(from)),
			zap.String("To", string(updated.SubscriptionStatus)),
		)
		if from != updated.SubscriptionStatus {
			pr.notify(ctx, logger, broker.StatusChanged{
				UserID:  updated.UserID,
				From:    string(from),
				To:      string(updated.SubscriptionStatus),
				EventID: p.EventID,
				At:      env.Now,
			})
		}
	}
	return outcome, nil
}

// reattach makes the new payment method the default of the bound subscription before the Record is touched.
// Anything but OutcomeApplied means the Record must be left alone
func (pr *Processor) reattach(ctx context.Context, logger *zap.Logger, key subscription.Key, p Payload) (Outcome, error) {
	if p.BoundSubscriptionID == "" || p.PaymentMethodID == "" {
		logger.Warn("Setup intent is not bound to a subscription, ignoring",
			zap.String("SubscriptionID", p.BoundSubscriptionID),
			zap.String("PaymentMethodID", p.PaymentMethodID),
		)
		return OutcomeIgnored, nil
	}
	rec, err := pr.Store.Get(ctx, key)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot look up subscription record")
	}
	if rec == nil {
		logger.Warn("No subscription record matches event, acknowledging")
		return OutcomeMiss, nil
	}
	if rec.SubscriptionStatus == subscription.StatusCanceled || rec.ExternalSubscriptionID != p.BoundSubscriptionID {
		logger.Warn("Setup intent is bound to a subscription the record no longer holds, ignoring",
			zap.String("SubscriptionID", p.BoundSubscriptionID),
			zap.String("RecordSubscriptionID", rec.ExternalSubscriptionID),
			zap.String("Status", string(rec.SubscriptionStatus)),
		)
		return OutcomeIgnored, nil
	}
	if err := pr.PaymentMethods.SetDefaultPaymentMethod(ctx, p.BoundSubscriptionID, p.PaymentMethodID); err != nil {
		logger.Error("Unable to reattach payment method",
			zap.String("SubscriptionID", p.BoundSubscriptionID),
			zap.Error(err),
		)
		return "", err
	}
	return OutcomeApplied, nil
}

func (pr *Processor) notify(ctx context.Context, logger *zap.Logger, msg broker.StatusChanged) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pr.Broker.PublishStatusChanged(ctx, msg); err != nil {
		logger.Warn("Unable to publish status change",
			zap.Error(err),
		)
	}
}
