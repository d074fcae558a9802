// Package loyaltyapi serves the rewards backend's auth surface: one login
// endpoint per role and a bearer-protected /auth/me.
package loyaltyapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	emailAdapter "rewards/internal/adapters/email"
	"rewards/internal/adapters/metrics"
	"rewards/internal/application/orchestrators"
	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

// maxBodyBytes caps login request bodies.
const maxBodyBytes = 1 << 16

// Error details, worded as the backend has always returned them.
const (
	detailInvalidCredentials = "Invalid credentials"
	detailLocked             = "Account locked after too many failed attempts. Try again later."
	detailInactive           = "Account is inactive"
	detailBadBody            = "Invalid request body"
	detailNotAuthenticated   = "Could not validate credentials"
)

// PrincipalStore is the principal persistence the API needs.
type PrincipalStore interface {
	orchestrators.PrincipalStoreForLogin
	GetByID(ctx context.Context, id string) (principal.Principal, error)
}

// Deps holds dependencies for the API server. Notices, Metrics and Gatherer are optional.
type Deps struct {
	Principals PrincipalStore
	Tokens     *Issuer
	Notices    emailAdapter.Sender
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server is the loyalty auth API.
type Server struct {
	deps Deps
}

// NewServer creates an API server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		for _, rl := range role.All {
			r.Post(strings.TrimPrefix(rl.LoginPath(), "/auth"), s.handleLogin(rl))
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.handleMe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	return r
}

// loginRequest is the body of every login endpoint. Customers may send phone instead of email.
type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// profileResponse is the body of a login or /auth/me answer.
type profileResponse struct {
	AccessToken    string `json:"access_token,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	Role           string `json:"role"`
	AdminID        string `json:"admin_id,omitempty"`
	OrgID          string `json:"org_id,omitempty"`
	BusinessID     string `json:"business_id,omitempty"`
	StaffID        string `json:"staff_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Points         *int   `json:"points,omitempty"`
}

func newProfileResponse(p principal.Principal) profileResponse {
	scope := p.Scope()
	resp := profileResponse{
		Role:       string(p.Role),
		AdminID:    scope.AdminID,
		OrgID:      scope.OrganizationID,
		BusinessID: scope.BusinessID,
		StaffID:    scope.StaffID,
		CustomerID: scope.CustomerID,
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
	}
	if p.Role == role.Customer {
		points := p.Points
		resp.Points = &points
	}
	return resp
}

func (s *Server) handleLogin(r role.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body loginRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil {
			writeDetail(w, http.StatusBadRequest, detailBadBody)
			return
		}
		if (body.Email == "" && body.Phone == "") || body.Password == "" {
			writeDetail(w, http.StatusBadRequest, detailBadBody)
			return
		}

		result, err := orchestrators.ExecuteBackendLogin(req.Context(), orchestrators.BackendLoginInput{
			Role:      r,
			Email:     body.Email,
			Phone:     body.Phone,
			Password:  body.Password,
			IPAddress: clientIP(req),
		}, orchestrators.BackendLoginDeps{
			Principals: s.deps.Principals,
			Tokens:     s.deps.Tokens,
			Notices:    s.deps.Notices,
			Metrics:    s.deps.Metrics,
		})
		switch {
		case errors.Is(err, orchestrators.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, detailInvalidCredentials)
			return
		case errors.Is(err, orchestrators.ErrAccountLocked):
			writeDetail(w, http.StatusLocked, detailLocked)
			return
		case errors.Is(err, orchestrators.ErrAccountInactive):
			writeDetail(w, http.StatusForbidden, detailInactive)
			return
		case err != nil:
			slog.Error("internal_error", "path", req.URL.Path, "error", err)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		resp := newProfileResponse(result.Principal)
		resp.AccessToken = result.AccessToken
		resp.TokenType = "bearer"
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	p, err := s.deps.Principals.GetByID(r.Context(), claims.Subject)
	if err != nil || p.Role != claims.Role || !p.CanSignIn() {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type claimsKey struct{}

// authenticate rejects requests without a valid bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeUnauthorized(w)
			return
		}
		claims, err := s.deps.Tokens.Parse(token)
		if err != nil {
			slog.Info("auth_event", "event", "api_token_rejected", "reason", err.Error())
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	if c == nil {
		return &Claims{}
	}
	return c
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.deps.Metrics.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		slog.Debug("api_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // connection may be closed
	}
}

// writeDetail writes a FastAPI-style error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detailNotAuthenticated)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
