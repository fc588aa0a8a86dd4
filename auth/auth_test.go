package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type memoryRevocations struct {
	sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (m *memoryRevocations) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	m.Lock()
	defer m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[sessionID] = ttl
	return nil
}

func (m *memoryRevocations) Revoked(ctx context.Context, sessionID string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[sessionID]
	return ok, nil
}

func getFixtures(t *testing.T) (*Auth, *memoryRevocations) {
	store := &memoryRevocations{revoked: make(map[string]time.Duration)}
	a, err := New(Options{
		Revocations: store,
		Logger:      zap.NewNop(),
		JWTSecret:   testSecret,
	})
	require.NoError(t, err)
	return a, store
}

func validClaims() Claims {
	return Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   uuid.New().String(),
			Audience:  "authenticated",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		Email:     "trader@example.com",
		Role:      "authenticated",
		SessionID: uuid.New().String(),
	}
}

func sign(t *testing.T, secret string, claims Claims) string {
	token, err := SignClaims(secret, claims)
	require.NoError(t, err)
	return token
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := FromContext(r.Context()); ok {
			w.Write([]byte(claims.UserID()))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Logger: zap.NewNop(), JWTSecret: testSecret})
	assert.Error(t, err)

	_, err = New(Options{Revocations: &memoryRevocations{}, Logger: zap.NewNop(), JWTSecret: "short"})
	assert.Error(t, err)
}

func TestMiddlewareBearer(t *testing.T) {
	a, _ := getFixtures(t)
	claims := validClaims()

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims))
	w := httptest.NewRecorder()

	a.Middleware()(echoIdentity()).ServeHTTP(w, r)

	assert.Equal(t, claims.Subject, w.Body.String())
}

func TestMiddlewareCookie(t *testing.T) {
	a, _ := getFixtures(t)
	claims := validClaims()

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: sign(t, testSecret, claims)})
	w := httptest.NewRecorder()

	a.Middleware()(echoIdentity()).ServeHTTP(w, r)

	assert.Equal(t, claims.Subject, w.Body.String())
}

func TestMiddlewareAnonymous(t *testing.T) {
	a, _ := getFixtures(t)

	expired := validClaims()
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()

	notAUser := validClaims()
	notAUser.Subject = "service_role"

	cases := map[string]string{
		"none":         "",
		"garbage":      "Bearer not-a-token",
		"wrong secret": "Bearer " + sign(t, "another-secret-that-is-long-enough", validClaims()),
		"expired":      "Bearer " + sign(t, testSecret, expired),
		"bad subject":  "Bearer " + sign(t, testSecret, notAUser),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()

			a.Middleware()(echoIdentity()).ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "anonymous", w.Body.String())
		})
	}
}

func TestRevokedSessionIsAnonymous(t *testing.T) {
	a, store := getFixtures(t)
	claims := validClaims()
	store.revoked[claims.SessionID] = time.Hour

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims))
	w := httptest.NewRecorder()

	a.Middleware()(echoIdentity()).ServeHTTP(w, r)

	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRevocationStoreErrorKeepsSession(t *testing.T) {
	a, store := getFixtures(t)
	store.err = errors.New("connection refused")
	claims := validClaims()

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, testSecret, claims))
	w := httptest.NewRecorder()

	a.Middleware()(echoIdentity()).ServeHTTP(w, r)

	assert.Equal(t, claims.Subject, w.Body.String())
}

func TestClaimCheck(t *testing.T) {
	a, _ := getFixtures(t)

	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	w := httptest.NewRecorder()
	a.ClaimCheck()(echoIdentity()).ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	claims := validClaims()
	r = r.WithContext(WithClaims(r.Context(), &claims))
	w = httptest.NewRecorder()
	a.ClaimCheck()(echoIdentity()).ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout(t *testing.T) {
	a, store := getFixtures(t)
	claims := validClaims()
	token := sign(t, testSecret, claims)

	handler := a.Middleware()(a.LogoutHandler())

	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"loggedOut":true}`, w.Body.String())
	require.Contains(t, store.revoked, claims.SessionID)
	assert.InDelta(t, time.Hour.Seconds(), store.revoked[claims.SessionID].Seconds(), 5)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)

	// the same token no longer identifies anyone
	r = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	a.Middleware()(echoIdentity()).ServeHTTP(w, r)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestLogoutFailure(t *testing.T) {
	a, store := getFixtures(t)
	store.err = errors.New("connection refused")
	claims := validClaims()

	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	r = r.WithContext(WithClaims(r.Context(), &claims))
	w := httptest.NewRecorder()
	a.LogoutHandler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
