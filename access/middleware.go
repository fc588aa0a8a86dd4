package access

import (
	"net/http"
	"net/url"

	"github.com/inverseneural/lab/auth"
	resp "github.com/inverseneural/lab/response"
)

func requestFrom(r *http.Request) Request {
	req := Request{Path: r.URL.Path}
	if claims, ok := auth.FromContext(r.Context()); ok {
		req.UserID = claims.UserID()
		req.Email = claims.Email
	}
	return req
}

func (g *Guard) loginURL(r *http.Request) string {
	q := url.Values{}
	q.Set("next", r.URL.RequestURI())
	return g.Paths.Login + "?" + q.Encode()
}

// Middleware guards page navigations and answers blocked requests with redirects.
// It expects auth.Middleware to run before it
func (g *Guard) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.Paths.IsStatic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			switch g.Evaluate(r.Context(), requestFrom(r)) {
			case RedirectLogin:
				http.Redirect(w, r, g.loginURL(r), http.StatusFound)
			case RedirectBilling:
				http.Redirect(w, r, g.Paths.Billing, http.StatusFound)
			case RedirectDashboard:
				http.Redirect(w, r, g.Paths.Dashboard, http.StatusFound)
			case Unavailable:
				resp.WriteError(w, r, resp.ErrUnavailable())
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireEntitlement guards API routes. Anonymous callers get 401, callers without access get 402
func (g *Guard) RequireEntitlement() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := requestFrom(r)
			if req.UserID == "" {
				resp.WriteError(w, r, resp.ErrNoIdentity())
				return
			}
			switch g.Evaluate(r.Context(), req) {
			case RedirectLogin:
				resp.WriteError(w, r, resp.ErrNoIdentity())
			case RedirectBilling:
				resp.WriteError(w, r, resp.ErrSubscriptionRequired())
			case Unavailable:
				resp.WriteError(w, r, resp.ErrUnavailable())
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
