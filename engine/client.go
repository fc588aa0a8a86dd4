package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every call to the trading engine
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// ErrUnavailable is returned without calling the engine while the circuit breaker is open
var ErrUnavailable = errors.New("trading engine is unavailable")

// StatusError is returned when the engine answers with a non 2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine returned HTTP %d: %s", e.StatusCode, e.Body)
}

// BreakerOptions tunes the circuit breaker in front of the engine
type BreakerOptions struct {
	// MaxRequests is the number of trial calls let through while half-open
	MaxRequests uint32
	// Interval resets the failure counts while closed
	Interval time.Duration
	// Cooldown is how long the breaker stays open
	Cooldown time.Duration
	// Failures is the number of consecutive failures that opens the breaker
	Failures uint32
}

// DefaultBreakerOptions opens after 5 consecutive failures and probes again after 30 seconds
func DefaultBreakerOptions() BreakerOptions {
	return BreakerOptions{
		MaxRequests: 1,
		Interval:    time.Minute,
		Cooldown:    30 * time.Second,
		Failures:    5,
	}
}

// ClientOptions contains the configuration of Client
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker BreakerOptions
	Logger  *zap.Logger
	// HTTPClient defaults to a client with Timeout
	HTTPClient *http.Client
}

// Client calls the Trading Engine Service
type Client struct {
	ClientOptions
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient returns a Client
func NewClient(option ClientOptions) (*Client, error) {
	if len(option.BaseURL) == 0 {
		return nil, fmt.Errorf("empty BaseURL is invalid")
	}
	if _, err := url.Parse(option.BaseURL); err != nil {
		return nil, extErrors.Wrap(err, "Invalid BaseURL")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Timeout <= 0 {
		option.Timeout = DefaultTimeout
	}
	if option.Breaker == (BreakerOptions{}) {
		option.Breaker = DefaultBreakerOptions()
	}
	if option.HTTPClient == nil {
		option.HTTPClient = &http.Client{
			Timeout: option.Timeout,
		}
	}
	option.BaseURL = strings.TrimRight(option.BaseURL, "/")

	c := &Client{
		ClientOptions: option,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "trading-engine",
		MaxRequests: option.Breaker.MaxRequests,
		Interval:    option.Breaker.Interval,
		Timeout:     option.Breaker.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= option.Breaker.Failures
		},
		IsSuccessful: func(err error) bool {
			// the engine rejecting a request is not an outage
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.Logger.Info("Circuit breaker state changed",
				zap.String("Breaker", name),
				zap.String("From", from.String()),
				zap.String("To", to.String()),
			)
		},
	})
	return c, nil
}

// BreakerState reports the state of the circuit breaker
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, extErrors.Wrap(err, "Cannot encode engine request")
		}
		payload = b
	}

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	result, err := c.breaker.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if len(c.APIKey) > 0 {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		req.Header.Set("X-Request-ID", uuid.New().String())

		res, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		b, err := ioutil.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		if err != nil {
			return nil, extErrors.Wrap(err, "Cannot read engine response")
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return nil, &StatusError{StatusCode: res.StatusCode, Body: string(b)}
		}
		if len(b) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("engine returned a non JSON body")
		}
		return b, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(result), nil
}

func userPath(prefix, userID string) string {
	return prefix + "/" + url.PathEscape(userID)
}

func userQuery(userID string) url.Values {
	q := url.Values{}
	q.Set("user_id", userID)
	return q
}

// Health returns the engine's own health report
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Status returns the strategy status of the user
func (c *Client) Status(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, userPath("/strategy/status", userID), nil, nil)
}

// Start launches the strategy of the user with cfg
func (c *Client) Start(ctx context.Context, userID string, cfg StartConfig) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/strategy/start", userQuery(userID), cfg)
}

// Stop halts the strategy of the user
func (c *Client) Stop(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/strategy/stop", userQuery(userID), nil)
}

// Logs returns up to limit log lines of the user's strategy
func (c *Client) Logs(ctx context.Context, userID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.do(ctx, http.MethodGet, userPath("/strategy/logs", userID), q, nil)
}

// Reset clears the strategy state of the user
func (c *Client) Reset(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, userPath("/strategy/reset", userID), nil, nil)
}
