package access

import (
	"context"
	"fmt"
	"time"

	"github.com/inverseneural/lab/metrics"
	"github.com/inverseneural/lab/subscription"

	"go.uber.org/zap"
)

// Decision is the outcome of evaluating a request
type Decision int

// Defining the decisions the Guard can make
const (
	Allow Decision = iota
	RedirectLogin
	RedirectBilling
	RedirectDashboard
	Unavailable
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectBilling:
		return "redirect_billing"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Store is the part of subscription.Manager the Guard needs
type Store interface {
	GetByUserID(ctx context.Context, userID string) (*subscription.Record, error)
	CreateTrial(ctx context.Context, userID, email string, trialEndsAt time.Time) (*subscription.Record, error)
	SetGracePeriodEnd(ctx context.Context, userID string, end time.Time) (bool, error)
}

var _ Store = &subscription.Manager{}

// Policy holds the durations of the access lifecycle
type Policy struct {
	TrialLength time.Duration
	// TrialGrace is added to trial_ends_at once an expired trial is observed
	TrialGrace time.Duration
	// PaymentFallbackGrace is used when a payment_failed record has no grace period yet
	PaymentFallbackGrace time.Duration
}

// DefaultPolicy is a 15 day trial with 3 days of grace
func DefaultPolicy() Policy {
	return Policy{
		TrialLength:          15 * 24 * time.Hour,
		TrialGrace:           3 * 24 * time.Hour,
		PaymentFallbackGrace: 3 * 24 * time.Hour,
	}
}

// Request is what the Guard knows about an incoming request. An empty UserID is an anonymous request
type Request struct {
	Path   string
	UserID string
	Email  string
}

// GuardOptions contains the dependencies of Guard
type GuardOptions struct {
	Store   Store
	Logger  *zap.Logger
	Metrics *metrics.Collectors
	Policy  Policy
	Paths   Paths
	Now     func() time.Time
}

// Guard decides on every request whether the caller may access the product
type Guard struct {
	GuardOptions
}

// NewGuard returns a Guard
func NewGuard(option GuardOptions) (*Guard, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Policy.TrialLength <= 0 {
		return nil, fmt.Errorf("non-positive TrialLength is invalid")
	}
	if option.Policy.TrialGrace < 0 || option.Policy.PaymentFallbackGrace < 0 {
		return nil, fmt.Errorf("negative grace period is invalid")
	}
	if option.Paths.Login == "" || option.Paths.Billing == "" || option.Paths.Dashboard == "" {
		return nil, fmt.Errorf("Paths must define Login, Billing and Dashboard")
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	return &Guard{
		GuardOptions: option,
	}, nil
}

// Evaluate derives the Decision for req from the stored Record. The Record is read fresh on every call
func (g *Guard) Evaluate(ctx context.Context, req Request) Decision {
	decision, state := g.evaluate(ctx, req)
	g.Metrics.ObserveDecision(decision.String(), state)
	return decision
}

func (g *Guard) evaluate(ctx context.Context, req Request) (Decision, string) {
	if req.UserID == "" {
		if g.Paths.IsProtected(req.Path) {
			return RedirectLogin, "anonymous"
		}
		return Allow, "anonymous"
	}

	logger := g.Logger.With(
		zap.String("UserID", req.UserID),
		zap.String("Path", req.Path),
	)
	now := g.Now()

	rec, err := g.Store.GetByUserID(ctx, req.UserID)
	if err != nil {
		return g.storeFailure(logger, req.Path, err), "error"
	}
	if rec == nil {
		rec, err = g.Store.CreateTrial(ctx, req.UserID, req.Email, now.Add(g.Policy.TrialLength))
		if err != nil {
			return g.storeFailure(logger, req.Path, err), "error"
		}
		logger.Info("Created trial record",
			zap.Time("TrialEndsAt", rec.TrialEndsAt),
		)
	}

	state := subscription.StateOf(rec)
	switch s := state.(type) {
	case subscription.Active:
		return g.entitled(req.Path), state.Name()

	case subscription.Trial:
		if !s.EndsAt.Before(now) {
			return g.entitled(req.Path), state.Name()
		}
		seed := s.EndsAt.Add(g.Policy.TrialGrace)
		return g.withinGrace(ctx, logger, req, s.GraceEnd, seed, now), state.Name()

	case subscription.PaymentFailed:
		seed := now.Add(g.Policy.PaymentFallbackGrace)
		if s.LastFailure != nil {
			seed = s.LastFailure.Add(g.Policy.PaymentFallbackGrace)
		}
		return g.withinGrace(ctx, logger, req, s.GraceEnd, seed, now), state.Name()

	case subscription.Canceled:
		return g.blocked(req.Path), state.Name()

	case subscription.Unknown:
		logger.Warn("Unknown subscription status, allowing",
			zap.String("Status", string(s.Status)),
		)
		return Allow, state.Name()

	default:
		return Allow, state.Name()
	}
}

// entitled users are sent from the login pages to the dashboard
func (g *Guard) entitled(p string) Decision {
	if g.Paths.IsAuthPage(p) {
		return RedirectDashboard
	}
	return Allow
}

func (g *Guard) blocked(p string) Decision {
	if g.Paths.IsExempt(p) {
		return Allow
	}
	return RedirectBilling
}

// withinGrace materializes the grace period if it is not stored yet, then checks now against it
func (g *Guard) withinGrace(ctx context.Context, logger *zap.Logger, req Request, graceEnd *time.Time, seed time.Time, now time.Time) Decision {
	if graceEnd == nil {
		end := seed
		changed, err := g.Store.SetGracePeriodEnd(ctx, req.UserID, seed)
		switch {
		case err != nil:
			logger.Warn("Cannot persist grace period, evaluating with computed value",
				zap.Time("GracePeriodEnd", seed),
				zap.Error(err),
			)
		case changed:
			logger.Info("Grace period started",
				zap.Time("GracePeriodEnd", seed),
			)
		default:
			// someone else wrote it first, use theirs
			if rec, err := g.Store.GetByUserID(ctx, req.UserID); err == nil && rec != nil && rec.GracePeriodEnd != nil {
				end = *rec.GracePeriodEnd
			}
		}
		graceEnd = &end
	}
	if !now.After(*graceEnd) {
		return Allow
	}
	return g.blocked(req.Path)
}

func (g *Guard) storeFailure(logger *zap.Logger, p string, err error) Decision {
	if g.Paths.IsCritical(p) {
		logger.Error("Cannot load subscription record on critical path",
			zap.Error(err),
		)
		return Unavailable
	}
	logger.Warn("Cannot load subscription record, failing open",
		zap.Error(err),
	)
	return Allow
}
