package billing

import (
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/inverseneural/lab/metrics"
	resp "github.com/inverseneural/lab/response"

	"github.com/go-chi/chi"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds the size of a webhook delivery
const MaxBodyBytes = int64(65536)

const signatureHeader = "Stripe-Signature"

// ServiceOptions contains the dependencies of Service
type ServiceOptions struct {
	Processor     *Processor
	SigningSecret string
	Logger        *zap.Logger
	Metrics       *metrics.Collectors
}

// Service receives Stripe webhook deliveries
type Service struct {
	ServiceOptions
}

// NewService returns a Service
func NewService(option ServiceOptions) (*Service, error) {
	if option.Processor == nil {
		return nil, fmt.Errorf("nil Processor is invalid")
	}
	if len(option.SigningSecret) == 0 {
		return nil, fmt.Errorf("empty SigningSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// ReceivedResponse acknowledges a delivery
type ReceivedResponse struct {
	Received bool `json:"received"`
}

func (s *Service) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		s.Logger.Warn("Cannot read webhook body",
			zap.Error(err),
		)
		s.Metrics.ObserveWebhook("unknown", "rejected")
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unreadable body"))
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get(signatureHeader), s.SigningSecret)
	if err != nil {
		s.Logger.Warn("Rejected webhook with invalid signature",
			zap.String("RemoteAddr", r.RemoteAddr),
			zap.Error(err),
		)
		s.Metrics.ObserveWebhook("unknown", "rejected")
		resp.WriteError(w, r, resp.ErrInvalidSignature())
		return
	}

	logger := s.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("EventType", event.Type),
	)

	payload, err := Decode(event)
	if err != nil {
		logger.Error("Cannot decode billing event, acknowledging",
			zap.Error(err),
		)
		s.Metrics.ObserveWebhook(event.Type, "undecodable")
		resp.WriteResponse(w, r, ReceivedResponse{Received: true})
		return
	}

	outcome, err := s.Processor.Process(r.Context(), payload)
	if err != nil {
		logger.Error("Cannot process billing event",
			zap.Error(err),
		)
		s.Metrics.ObserveWebhook(event.Type, "error")
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	s.Metrics.ObserveWebhook(event.Type, string(outcome))
	resp.WriteResponse(w, r, ReceivedResponse{Received: true})
}

// Router returns the webhook endpoint
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.webhook)

	return r
}
