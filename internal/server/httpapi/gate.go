// Package httpapi exposes the identity core over HTTP: the login endpoints,
// the per-request access gate, and the websocket notification subscription.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/auth"
)

// Routes with special roles in the gate's redirect matrix.
const (
	rootPath    = "/"
	signInPath  = "/sign-in"
	landingPath = "/home"
)

// DefaultProtectedRoutes is the navigation matcher configured at startup.
// A trailing "/*" protects the whole subtree.
var DefaultProtectedRoutes = []string{
	"/home",
	"/meetups",
	"/groups",
	"/podcasts",
	"/interviews",
	"/profile/*",
	"/info",
	"/",
}

// Decision is the gate's verdict for one navigation request.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionRedirectSignIn
	DecisionRedirectHome
)

type ctxKey string

const addressKey ctxKey = "address"

// AddressFromContext returns the authenticated address stored by the gate.
func AddressFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(addressKey).(string)
	return addr, ok && addr != ""
}

// SessionValidator is the part of the session issuer the gate consumes.
type SessionValidator interface {
	Validate(token string) (string, error)
}

// Gate enforces route-level authentication policy. Auth state is derived
// fresh for every request from the session cookie; the gate holds no memory
// across requests and fails closed when validation errors.
type Gate struct {
	validator SessionValidator
	cookies   *auth.CookieWriter
	protected []string
	logger    logging.Logger
}

func NewGate(validator SessionValidator, cookies *auth.CookieWriter, protected []string, logger logging.Logger) *Gate {
	return &Gate{
		validator: validator,
		cookies:   cookies,
		protected: protected,
		logger:    logger.With("module", "gate"),
	}
}

// Decide is the pure redirect matrix over (auth state, requested path).
func (g *Gate) Decide(authenticated bool, path string) Decision {
	if path == rootPath {
		// The landing route re-checks auth itself.
		return DecisionRedirectHome
	}
	if authenticated && path == signInPath {
		return DecisionRedirectHome
	}
	if !authenticated && g.isProtected(path) {
		return DecisionRedirectSignIn
	}
	return DecisionAllow
}

// Middleware applies Decide to every navigation request. Authenticated
// requests continue with the address attached to the context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, authenticated := g.authState(r)

		switch g.Decide(authenticated, r.URL.Path) {
		case DecisionRedirectSignIn:
			http.Redirect(w, r, signInPath, http.StatusTemporaryRedirect)
			return
		case DecisionRedirectHome:
			http.Redirect(w, r, landingPath, http.StatusTemporaryRedirect)
			return
		}

		if authenticated {
			r = r.WithContext(context.WithValue(r.Context(), addressKey, address))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession guards API endpoints: no valid session means 401, never a
// redirect.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, authenticated := g.authState(r)
		if !authenticated {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), addressKey, address)))
	})
}

// authState validates the session cookie. Any failure, including a store or
// validator error, counts as unauthenticated: the gate fails closed.
func (g *Gate) authState(r *http.Request) (string, bool) {
	token := g.cookies.Read(r)
	if token == "" {
		return "", false
	}
	address, err := g.validator.Validate(token)
	if err != nil {
		g.logger.Debug(r.Context(), "session rejected", "path", r.URL.Path)
		return "", false
	}
	return address, true
}

func (g *Gate) isProtected(path string) bool {
	for _, pattern := range g.protected {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
