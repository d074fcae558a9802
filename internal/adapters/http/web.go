package web

import (
	"context"
	"net/http"
	"time"

	"rewards/internal/adapters/backend"
	"rewards/internal/adapters/http/middleware"
	"rewards/internal/adapters/metrics"
	auditStore "rewards/internal/adapters/storage/audit"
	"rewards/internal/application/orchestrators"
	appsession "rewards/internal/application/session"
	"rewards/internal/domain/route"
)

// Backend is the rewards backend as seen by the portal.
type Backend interface {
	orchestrators.BackendForLogin
	Me(ctx context.Context, token string) (backend.Profile, error)
}

// Deps holds the collaborators of the portal. Audit and Metrics are optional.
// The metrics endpoint is not part of the portal; it is served on its own listener.
type Deps struct {
	Backend      Backend
	BrowserState appsession.Storage
	Audit        auditStore.Store
	Metrics      *metrics.Metrics
}

// Options tunes the middleware chain.
type Options struct {
	// CSRFKey is the 32-byte gorilla/csrf secret.
	CSRFKey []byte

	// CookieHashKey signs the profile cookie; CookieBlockKey optionally encrypts it.
	CookieHashKey  []byte
	CookieBlockKey []byte

	// Secure marks cookies Secure and enables HTTPS-only CSRF checks.
	Secure         bool
	TrustedOrigins []string

	// TrustedProxies may set X-Forwarded-For; nil means the peer address is the client.
	TrustedProxies *middleware.TrustedProxies

	RateLimitPerSecond float64
	RateLimitBurst     int
	SlowRequest        time.Duration
}

// DefaultRateLimitPerSecond is the per-IP request rate when none is configured.
const DefaultRateLimitPerSecond = 10

// server carries the dependencies shared by the handlers.
type server struct {
	deps Deps
}

// NewMux wires HTTP handlers for the portal.
// PRE: deps.Backend and deps.BrowserState are set; opts.CSRFKey and opts.CookieHashKey are set
// POST: Returns the handler with the full middleware chain applied
func NewMux(deps Deps, opts Options) http.Handler {
	s := &server{deps: deps}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	perSecond := opts.RateLimitPerSecond
	if perSecond <= 0 {
		perSecond = DefaultRateLimitPerSecond
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = int(perSecond) * 2
	}
	limiter := middleware.NewRateLimiter(perSecond, burst)
	profiles := middleware.NewProfiles(opts.CookieHashKey, opts.CookieBlockKey, deps.BrowserState, opts.Secure)

	// Request order: ClientAddress -> Timing -> RateLimit -> Session -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.Secure, opts.TrustedOrigins),
		middleware.Session(profiles),
		middleware.RateLimit(limiter),
		middleware.Timing(deps.Metrics, opts.SlowRequest, routeLabel),
		middleware.ClientAddress(opts.TrustedProxies),
	)
}

// registerRoutes binds every route of the table behind the guard.
func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /logout", s.handleLogout)

	for i := range route.Table {
		d := &route.Table[i]
		guard := middleware.Guard(d, s.deps.Metrics)
		pattern := d.Path
		if pattern == "/" {
			pattern = "/{$}"
		}

		switch d.Path {
		case "/":
			mux.Handle("GET "+pattern, guard(http.HandlerFunc(s.handleLoginForm)))
			mux.Handle("POST "+pattern, guard(http.HandlerFunc(s.handleLogin)))
		case "/admin/audit":
			mux.Handle("GET "+pattern, guard(http.HandlerFunc(s.handleAdminAudit)))
		default:
			mux.Handle("GET "+pattern, guard(s.viewHandler(d)))
		}
	}

	mux.HandleFunc("/", s.handleUnknown)
}

// handleUnknown canonicalizes trailing slashes and guards everything else as
// an unknown route.
func (s *server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	if d := route.Lookup(r.URL.Path); d != nil && r.Method == http.MethodGet {
		http.Redirect(w, r, d.Path, http.StatusMovedPermanently)
		return
	}
	middleware.Guard(nil, s.deps.Metrics)(http.NotFoundHandler()).ServeHTTP(w, r)
}

// routeLabel bounds the route label of request metrics to known paths.
func routeLabel(r *http.Request) string {
	if d := route.Lookup(r.URL.Path); d != nil {
		return d.Path
	}
	switch r.URL.Path {
	case "/logout", "/healthz":
		return r.URL.Path
	}
	return "unmatched"
}
