package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	resp "github.com/inverseneural/lab/response"
	"go.uber.org/zap"
)

var bearerPrefix = "Bearer "
var jwtSigningMethod = jwt.SigningMethodHS256

// SignClaims creates a signed token in the same format as the auth provider. Used by tooling and tests
func SignClaims(secret string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwtSigningMethod, &claims)
	return token.SignedString([]byte(secret))
}

func (a *Auth) verifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	jwtToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	})
	if err != nil {
		if err == jwt.ErrSignatureInvalid {
			return nil, nil
		}
		if _, ok := err.(*jwt.ValidationError); ok {
			return nil, nil
		}
		return nil, err
	}
	if jwtToken.Method != jwtSigningMethod {
		return nil, nil
	}
	if !jwtToken.Valid {
		return nil, nil
	}
	return claims, nil
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Identify returns the Claims carried by the request, or nil when the request is anonymous.
// Revoked sessions are anonymous
func (a *Auth) Identify(r *http.Request) *Claims {
	token := tokenFromRequest(r)
	if token == "" {
		return nil
	}
	claims, err := a.verifyToken(token)
	if err != nil {
		a.Logger.Error("Cannot verify JWT token",
			zap.Error(err),
		)
		return nil
	}
	if claims == nil {
		return nil
	}
	if claims.SessionID != "" {
		revoked, err := a.Revocations.Revoked(r.Context(), claims.SessionID)
		if err != nil {
			a.Logger.Warn("Cannot check session revocation, assuming session is live",
				zap.String("UserID", claims.UserID()),
				zap.Error(err),
			)
		}
		if revoked {
			return nil
		}
	}
	return claims
}

// Middleware returns a http middleware that puts the caller's Claims into the context when present.
// Anonymous requests are passed through unchanged
func (a *Auth) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := a.Identify(r)
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ClaimCheck returns a http middleware to authenticated route to ensure that Claims exists in the context
func (a *Auth) ClaimCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				resp.WriteError(w, r, resp.ErrNoIdentity())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Auth) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := FromContext(r.Context())
	if !ok {
		resp.WriteError(w, r, resp.ErrNoIdentity())
		return
	}

	logger := a.Logger.With(zap.String("UserID", claims.UserID()))

	if claims.SessionID != "" {
		ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
		if err := a.Revocations.Revoke(r.Context(), claims.SessionID, ttl); err != nil {
			logger.Error("Unable to revoke session",
				zap.String("SessionID", claims.SessionID),
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to log out"))
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	resp.WriteResponse(w, r, map[string]bool{"loggedOut": true})
}

// LogoutHandler revokes the caller's session and clears the access token cookie
func (a *Auth) LogoutHandler() http.Handler {
	return a.ClaimCheck()(http.HandlerFunc(a.logout))
}
