package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextKey is a defined type to be used in context.Context containing the Claims
type ContextKey string

// Context is key used in context.Context containing the Claims
const Context ContextKey = "authContext"

// AccessTokenCookie is the cookie the hosted auth client stores the access token in
const AccessTokenCookie = "sb-access-token"

// Claims is the struct for the access token issued by the hosted auth provider
type Claims struct {
	jwt.StandardClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// UserID returns the subject of the token
func (c *Claims) UserID() string {
	return c.Subject
}

// Valid checks the registered claims and requires the subject to be a user id
func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return fmt.Errorf("token subject is not a user id: %w", err)
	}
	return nil
}

// RevocationStore remembers sessions that were logged out before their token expired
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocationStore keeps revoked session ids in redis until the token would have expired anyway
type RedisRevocationStore struct {
	Redis redis.UniversalClient
}

var _ RevocationStore = &RedisRevocationStore{}

func revocationKey(sessionID string) string {
	return "revoked_session:" + sessionID
}

// Revoke marks the session as logged out for ttl
func (s *RedisRevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Redis.Set(revocationKey(sessionID), time.Now().Unix(), ttl).Err()
}

// Revoked reports whether the session was logged out
func (s *RedisRevocationStore) Revoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.Redis.Exists(revocationKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Auth verifies the access tokens of the hosted auth provider
type Auth struct {
	Options
	jwtKey []byte
}

// Options provides initialization parameters for Auth
type Options struct {
	Revocations RevocationStore
	Logger      *zap.Logger

	JWTSecret string
	// Secure marks cookies written by Auth as https only
	Secure bool
}

func (o *Options) validate() error {
	if o == nil {
		return fmt.Errorf("nil option is invalid")
	}
	if o.Revocations == nil {
		return fmt.Errorf("nil Revocations is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be longer than 16 characters")
	}
	return nil
}

// New will return a new instance of Auth for authentication
func New(option Options) (*Auth, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	return &Auth{
		Options: option,
		jwtKey:  []byte(option.JWTSecret),
	}, nil
}

// FromContext returns the Claims of the authenticated caller, if any
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(Context).(*Claims)
	return claims, ok && claims != nil
}

// WithClaims returns a copy of ctx carrying claims
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, Context, claims)
}
