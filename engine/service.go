package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/inverseneural/lab/auth"
	"github.com/inverseneural/lab/metrics"
	resp "github.com/inverseneural/lab/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Default and maximum number of log lines returned by the logs endpoint
const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// Engine is the part of Client the Service needs
type Engine interface {
	Health(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context, userID string) (json.RawMessage, error)
	Start(ctx context.Context, userID string, cfg StartConfig) (json.RawMessage, error)
	Stop(ctx context.Context, userID string) (json.RawMessage, error)
	Logs(ctx context.Context, userID string, limit int) (json.RawMessage, error)
	Reset(ctx context.Context, userID string) (json.RawMessage, error)
}

var _ Engine = &Client{}

// ServiceOptions contains the dependencies of Service
type ServiceOptions struct {
	Engine  Engine
	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Service proxies the signed in user's strategy operations to the engine
type Service struct {
	ServiceOptions
}

// NewService returns a Service
func NewService(option ServiceOptions) (*Service, error) {
	if option.Engine == nil {
		return nil, fmt.Errorf("nil Engine is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// Indicator is attached to engine failures so the UI can show the engine as down
type Indicator struct {
	Engine string `json:"engine"`
}

func indicatorOf(err error) Indicator {
	if errors.Is(err, ErrUnavailable) {
		return Indicator{Engine: "circuit_open"}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
		return Indicator{Engine: "rejected"}
	}
	return Indicator{Engine: "unreachable"}
}

func (s *Service) reply(w http.ResponseWriter, r *http.Request, operation string, result json.RawMessage, err error) {
	if err != nil {
		indicator := indicatorOf(err)
		s.Logger.Error("Trading engine call failed",
			zap.String("Operation", operation),
			zap.String("Engine", indicator.Engine),
			zap.Error(err),
		)
		s.Metrics.ObserveEngine(operation, indicator.Engine)
		resp.WriteError(w, r, resp.ErrBadGateway().
			AddMessages("Trading engine request failed").
			WithResult(indicator),
		)
		return
	}
	s.Metrics.ObserveEngine(operation, "ok")
	resp.WriteResponse(w, r, result)
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	result, err := s.Engine.Health(r.Context())
	s.reply(w, r, "health", result, err)
}

func (s *Service) status(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	result, err := s.Engine.Status(r.Context(), claims.UserID())
	s.reply(w, r, "status", result, err)
}

func (s *Service) start(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var cfg StartConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(
			"selectedPairs must hold 1 to 9 supported pairs",
			"positionSize must be between 1 and 15",
			"aggressiveness must be one of conservador, balanceado or agresivo",
			"accountType must be PRACTICE or REAL",
		))
		return
	}
	cfg.Email = claims.Email

	s.Logger.Info("Starting strategy",
		zap.String("UserID", claims.UserID()),
		zap.Strings("Pairs", cfg.SelectedPairs),
		zap.String("AccountType", cfg.AccountType),
	)

	result, err := s.Engine.Start(r.Context(), claims.UserID(), cfg)
	s.reply(w, r, "start", result, err)
}

func (s *Service) stop(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	result, err := s.Engine.Stop(r.Context(), claims.UserID())
	s.reply(w, r, "stop", result, err)
}

func (s *Service) logs(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	limit := DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("limit must be a positive number"))
			return
		}
		limit = n
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	result, err := s.Engine.Logs(r.Context(), claims.UserID(), limit)
	s.reply(w, r, "logs", result, err)
}

func (s *Service) reset(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	result, err := s.Engine.Reset(r.Context(), claims.UserID())
	s.reply(w, r, "reset", result, err)
}

// Router returns the strategy API. Every route requires an identity in the context
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Post("/start", s.start)
	r.Post("/stop", s.stop)
	r.Get("/logs", s.logs)
	r.Post("/reset", s.reset)

	return r
}
