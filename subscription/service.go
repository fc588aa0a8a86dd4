package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/inverseneural/lab/auth"
	resp "github.com/inverseneural/lab/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Store is the part of Manager the Service needs
type Store interface {
	GetByUserID(ctx context.Context, userID string) (*Record, error)
	CreateTrial(ctx context.Context, userID, email string, trialEndsAt time.Time) (*Record, error)
	Ping(ctx context.Context) error
}

// Payments is the part of StripeGateway the Service needs
type Payments interface {
	CreateCheckout(ctx context.Context, opt CheckoutOptions) (string, error)
	CreatePaymentUpdate(ctx context.Context, opt PaymentUpdateOptions) (string, error)
	Ping(ctx context.Context) error
}

var _ Store = &Manager{}
var _ Payments = &StripeGateway{}

// ServiceOptions contains the dependencies of Service
type ServiceOptions struct {
	Store       Store
	Payments    Payments
	Catalog     *Catalog
	Logger      *zap.Logger
	SiteURL     string
	TrialLength time.Duration
	Now         func() time.Time
}

// Service serves the billing and profile API of the signed in user
type Service struct {
	ServiceOptions
}

// NewService returns a Service
func NewService(option ServiceOptions) (*Service, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Payments == nil {
		return nil, fmt.Errorf("nil Payments is invalid")
	}
	if option.Catalog == nil {
		return nil, fmt.Errorf("nil Catalog is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.SiteURL) == 0 {
		return nil, fmt.Errorf("empty SiteURL is invalid")
	}
	if option.TrialLength <= 0 {
		return nil, fmt.Errorf("non-positive TrialLength is invalid")
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	option.SiteURL = strings.TrimRight(option.SiteURL, "/")
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) loadOrCreate(ctx context.Context, claims *auth.Claims) (*Record, error) {
	rec, err := s.Store.GetByUserID(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	return s.Store.CreateTrial(ctx, claims.UserID(), claims.Email, s.Now().Add(s.TrialLength))
}

// CheckoutRequest is the body of a checkout request
type CheckoutRequest struct {
	PlanType PlanType `json:"planType" validate:"required,oneof=basic pro elite"`
}

// SessionResponse carries the Checkout Session the client redirects to
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Service) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("planType must be one of basic, pro or elite"))
		return
	}

	plan, ok := s.Catalog.Lookup(req.PlanType)
	if !ok {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown plan"))
		return
	}

	rec, err := s.loadOrCreate(ctx, claims)
	if err != nil {
		logger.Error("Unable to load subscription record",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if rec.SubscriptionStatus == StatusActive {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("An active subscription already exists"))
		return
	}

	sessionID, err := s.Payments.CreateCheckout(ctx, CheckoutOptions{
		UserID:     claims.UserID(),
		Email:      claims.Email,
		CustomerID: rec.ExternalCustomerID,
		Plan:       plan,
		SuccessURL: s.SiteURL + "/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.SiteURL + "/billing?checkout=canceled",
	})
	if err != nil {
		logger.Error("Unable to setup checkout in Stripe",
			zap.String("PlanType", string(plan.Type)),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadGateway().AddMessages("Unable to start checkout"))
		return
	}

	resp.WriteResponse(w, r, SessionResponse{SessionID: sessionID})
}

func (s *Service) updatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	rec, err := s.Store.GetByUserID(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to load subscription record",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}
	if rec == nil || rec.SubscriptionStatus != StatusPaymentFailed {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Payment method can only be updated after a failed payment"))
		return
	}
	if len(rec.ExternalCustomerID) == 0 || len(rec.ExternalSubscriptionID) == 0 {
		logger.Warn("payment_failed record is not bound to Stripe")
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("No subscription to update"))
		return
	}

	sessionID, err := s.Payments.CreatePaymentUpdate(ctx, PaymentUpdateOptions{
		CustomerID:     rec.ExternalCustomerID,
		SubscriptionID: rec.ExternalSubscriptionID,
		SuccessURL:     s.SiteURL + "/dashboard?payment=updated",
		CancelURL:      s.SiteURL + "/billing",
	})
	if err != nil {
		logger.Error("Unable to setup payment update in Stripe",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadGateway().AddMessages("Unable to start payment update"))
		return
	}

	resp.WriteResponse(w, r, SessionResponse{SessionID: sessionID})
}

func (s *Service) listPlans(w http.ResponseWriter, r *http.Request) {
	resp.WriteResponse(w, r, s.Catalog.List())
}

// HealthResponse reports reachability of the billing dependencies
type HealthResponse struct {
	Database string `json:"database"`
	Stripe   string `json:"stripe"`
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result := HealthResponse{Database: "ok", Stripe: "ok"}
	healthy := true
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Warn("Database health check failed", zap.Error(err))
		result.Database = "unreachable"
		healthy = false
	}
	if err := s.Payments.Ping(ctx); err != nil {
		s.Logger.Warn("Stripe health check failed", zap.Error(err))
		result.Stripe = "unreachable"
		healthy = false
	}
	if !healthy {
		resp.WriteError(w, r, resp.ErrUnavailable().WithResult(result))
		return
	}
	resp.WriteResponse(w, r, result)
}

// AccessView is the derived view used by the UI to render warning banners
type AccessView struct {
	State         string `json:"state"`
	InGrace       bool   `json:"inGrace"`
	GraceDaysLeft int    `json:"graceDaysLeft"`
	TrialDaysLeft int    `json:"trialDaysLeft"`
}

// ProfileResponse is the signed in user's Record with its derived view
type ProfileResponse struct {
	Profile *Record    `json:"profile"`
	Access  AccessView `json:"access"`
	Plan    *Plan      `json:"plan,omitempty"`
}

func (s *Service) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, _ := auth.FromContext(ctx)

	rec, err := s.loadOrCreate(ctx, claims)
	if err != nil {
		s.Logger.Error("Unable to load subscription record",
			zap.String("UserID", claims.UserID()),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	now := s.Now()
	view := AccessView{
		State:         StateOf(rec).Name(),
		InGrace:       rec.InGrace(now),
		GraceDaysLeft: rec.GraceDaysLeft(now),
	}
	if rec.SubscriptionStatus == StatusTrial && rec.TrialEndsAt.After(now) {
		view.TrialDaysLeft = int(math.Ceil(rec.TrialEndsAt.Sub(now).Hours() / 24))
	}

	result := ProfileResponse{
		Profile: rec,
		Access:  view,
	}
	if plan, ok := s.Catalog.Lookup(rec.PlanType); ok {
		result.Plan = &plan
	}

	resp.WriteResponse(w, r, result)
}

// Router returns the billing API. Every route requires an identity in the context
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", s.listPlans)
	r.Get("/health", s.health)
	r.Post("/checkout", s.checkout)
	r.Post("/update-payment", s.updatePayment)

	return r
}

// ProfileRouter returns the profile API. Every route requires an identity in the context
func (s *Service) ProfileRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.profile)

	return r
}
