package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"rewards/internal/adapters/http/middleware"
	"rewards/internal/application/orchestrators"
	appsession "rewards/internal/application/session"
	"rewards/internal/domain/navigation"
	"rewards/internal/domain/role"
	"rewards/internal/domain/route"
	"rewards/internal/domain/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("internal_error", "error", err.Error())
	}
}

// requestMeta describes the request for audit records.
func requestMeta(r *http.Request, store *appsession.Store) orchestrators.RequestMeta {
	return orchestrators.RequestMeta{
		ProfileID: store.ProfileID(),
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// sessionStore returns the store bound by the Session middleware.
func sessionStore(w http.ResponseWriter, r *http.Request) (*appsession.Store, bool) {
	store, ok := middleware.SessionStoreFrom(r.Context())
	if !ok {
		internalError(w, errors.New("session middleware not installed"))
	}
	return store, ok
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, status int, data any) {
	var current session.Session
	if store, ok := middleware.SessionStoreFrom(r.Context()); ok {
		current = store.Current()
	}

	funcMap := template.FuncMap{
		"currentRole": func() string { return string(current.Role) },
		"currentName": func() string { return current.Identity.DisplayName() },
		"isLoggedIn":  current.Authenticated,
		"csrfToken":   func() string { return csrf.Token(r) },
		"menu":        func() []navigation.Item { return navigation.Menu(current.Role) },
		"activePath":  func() string { return r.URL.Path },
		"list":        func(items ...string) []string { return items },
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// roleOption is one entry of the account type select.
type roleOption struct {
	Value    string
	Label    string
	Selected bool
}

// loginRoleOptions lists the account types offered on the form.
// Deprecated roles are still accepted but not offered.
func loginRoleOptions(selected string) []roleOption {
	var opts []roleOption
	for _, r := range role.All {
		if r.Deprecated() {
			continue
		}
		opts = append(opts, roleOption{Value: string(r), Label: r.Label(), Selected: string(r) == selected})
	}
	return opts
}

func renderLogin(w http.ResponseWriter, r *http.Request, status int, identifier, selectedRole, message string) {
	renderTemplate(w, r, "login.html", status, map[string]any{
		"Title":      "Login",
		"Identifier": identifier,
		"Roles":      loginRoleOptions(selectedRole),
		"Message":    message,
	})
}

// handleLoginForm handles GET /
// Already authenticated profiles go straight to their home route.
func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	store, ok := sessionStore(w, r)
	if !ok {
		return
	}
	if current := store.Current(); current.Authenticated() {
		http.Redirect(w, r, navigation.HomeRoute(current.Role), http.StatusSeeOther)
		return
	}
	renderLogin(w, r, http.StatusOK, "", "", "")
}

// loginRequest is the JSON body accepted by POST /.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

// loginResponse is the JSON answer of POST /.
type loginResponse struct {
	OK       bool              `json:"ok"`
	Role     string            `json:"role,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Identity *session.Identity `json:"identity,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// handleLogin handles POST / with a form or a JSON body.
// PRE: Session middleware bound a store
// POST: Success saves the session and sends the browser to the role's home route
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	store, ok := sessionStore(w, r)
	if !ok {
		return
	}
	asJSON := isJSONRequest(r)

	var req loginRequest
	if asJSON {
		if err := strictDecode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, loginResponse{Message: "Invalid request body"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		req = loginRequest{
			Identifier: r.FormValue("identifier"),
			Password:   r.FormValue("password"),
			Role:       r.FormValue("role"),
		}
	}

	result := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Role:       req.Role,
		Meta:       requestMeta(r, store),
	}, s.loginDeps(store))

	if asJSON {
		if !result.OK {
			writeJSON(w, http.StatusUnauthorized, loginResponse{Message: result.Message})
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{
			OK:       true,
			Role:     string(result.Role),
			Redirect: result.Redirect,
			Identity: &result.Identity,
		})
		return
	}

	if !result.OK {
		renderLogin(w, r, http.StatusOK, req.Identifier, req.Role, result.Message)
		return
	}
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

func (s *server) loginDeps(store *appsession.Store) orchestrators.LoginDeps {
	deps := orchestrators.LoginDeps{
		Backend:  s.deps.Backend,
		Sessions: store,
		Metrics:  s.deps.Metrics,
	}
	if s.deps.Audit != nil {
		deps.Audit = s.deps.Audit
	}
	return deps
}

func (s *server) logoutDeps(store *appsession.Store) orchestrators.LogoutDeps {
	deps := orchestrators.LogoutDeps{Sessions: store}
	if s.deps.Audit != nil {
		deps.Audit = s.deps.Audit
	}
	return deps
}

// handleLogout handles POST /logout
// POST: Session is cleared and the browser is on the login route
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	store, ok := sessionStore(w, r)
	if !ok {
		return
	}
	err := orchestrators.ExecuteLogout(r.Context(), orchestrators.LogoutInput{Meta: requestMeta(r, store)}, s.logoutDeps(store))
	if err != nil {
		internalError(w, err)
		return
	}
	if isJSONRequest(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, navigation.LoginRoute, http.StatusSeeOther)
}

// handleHealth handles GET /healthz
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// viewHandler renders the placeholder view of a route. Customer views also
// fetch the live profile from the backend.
func (s *server) viewHandler(d *route.Descriptor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r)
		if !ok {
			return
		}
		current := store.Current()
		data := map[string]any{
			"Title":    d.Title,
			"Summary":  d.Summary,
			"Identity": current.Identity,
		}

		if current.Role == role.Customer && d.Allows(role.Customer) {
			profile, err := s.deps.Backend.Me(r.Context(), current.Token)
			switch {
			case errors.Is(err, session.ErrUnauthenticated):
				s.expire(w, r, store)
				return
			case err != nil:
				slog.Warn("backend_event", "event", "profile_unavailable", "profile_id", store.ProfileID(), "error", err)
				data["Notice"] = orchestrators.MsgUnavailable
			default:
				data["Identity"] = profile.Identity(role.Customer)
			}
		}

		renderTemplate(w, r, "view.html", http.StatusOK, data)
	})
}

// expire drops a session whose token the backend no longer accepts.
func (s *server) expire(w http.ResponseWriter, r *http.Request, store *appsession.Store) {
	input := orchestrators.LogoutInput{Expired: true, Meta: requestMeta(r, store)}
	if err := orchestrators.ExecuteLogout(r.Context(), input, s.logoutDeps(store)); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, navigation.LoginRoute, http.StatusSeeOther)
}
