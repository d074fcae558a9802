package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rewards/internal/domain/audit"
	"rewards/internal/domain/navigation"
	"rewards/internal/domain/role"
	"rewards/internal/domain/session"
)

// Messages shown inline on the login form.
const (
	MsgMissingCredentials = "Enter your email or phone number and password"
	MsgSelectRole         = "Select an account type"
	MsgUnknownRole        = "Unknown account type"
	MsgInvalidCredentials = "Invalid credentials"
	MsgUnavailable        = "Unable to reach the rewards service. Please try again."
	MsgSignInFailed       = "Unable to sign in right now. Please try again."
)

// Login outcomes, used as the metrics label and the audit description.
const (
	OutcomeSuccess            = "success"
	OutcomeMissingCredentials = "missing_credentials"
	OutcomeNoRole             = "no_role"
	OutcomeInvalidRole        = "invalid_role"
	OutcomeRejected           = "rejected"
	OutcomeUnavailable        = "unavailable"
	OutcomeRoleMismatch       = "role_mismatch"
	OutcomeBadGrant           = "bad_grant"
	OutcomeSessionError       = "session_error"
)

// BackendForLogin defines the backend call needed by Login.
type BackendForLogin interface {
	Authenticate(ctx context.Context, r role.Role, identifier, password string) (session.Grant, error)
}

// SessionSaver defines the session store operation needed by Login.
type SessionSaver interface {
	Save(ctx context.Context, token string, r role.Role, identity session.Identity) error
}

// AuditRecorder persists audit events.
type AuditRecorder interface {
	Save(ctx context.Context, event audit.Event) error
}

// LoginRecorder counts login attempts.
type LoginRecorder interface {
	RecordLogin(role, outcome string)
}

// RequestMeta describes where an auth request came from.
type RequestMeta struct {
	ProfileID string
	IPAddress string
	UserAgent string
}

// LoginInput carries input for the login orchestrator.
// Role is the raw account type from the form; empty means infer it from Identifier.
type LoginInput struct {
	Identifier string
	Password   string
	Role       string
	Meta       RequestMeta
}

// LoginResult is the tagged outcome of a login. OK selects which fields are set.
type LoginResult struct {
	OK bool

	// Set on success.
	Role     role.Role
	Identity session.Identity
	Redirect string

	// Set on failure.
	Message string
	Outcome string
}

// LoginDeps holds dependencies for Login. Audit and Metrics are optional.
type LoginDeps struct {
	Backend  BackendForLogin
	Sessions SessionSaver
	Audit    AuditRecorder
	Metrics  LoginRecorder
}

// ExecuteLogin exchanges credentials for a session against the endpoint of the selected role.
// It never returns an error: every failure is a result carrying a message for the form.
// PRE: deps.Backend and deps.Sessions are set
// POST: On success the session is saved; on failure the session is untouched
// INVARIANT: Exactly one backend endpoint is tried per call
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) LoginResult {
	identifier := strings.TrimSpace(input.Identifier)
	requested := strings.TrimSpace(input.Role)

	fail := func(r role.Role, outcome, message string) LoginResult {
		recordLoginFailure(ctx, deps, input.Meta, identifier, r, outcome)
		return LoginResult{Message: message, Outcome: outcome}
	}

	if identifier == "" || input.Password == "" {
		return fail("", OutcomeMissingCredentials, MsgMissingCredentials)
	}

	var r role.Role
	if requested == "" {
		inferred, ok := role.Infer(identifier)
		if !ok {
			return fail("", OutcomeNoRole, MsgSelectRole)
		}
		r = inferred
	} else {
		parsed, err := role.Parse(requested)
		if err != nil {
			return fail("", OutcomeInvalidRole, MsgUnknownRole)
		}
		r = parsed
	}

	if r.Deprecated() {
		slog.Warn("auth_event", "event", "deprecated_role", "role", r, "identifier", identifier)
	}

	grant, err := deps.Backend.Authenticate(ctx, r, identifier, input.Password)
	if err != nil {
		var rejected *session.RejectedError
		switch {
		case errors.As(err, &rejected):
			msg := rejected.Detail
			if msg == "" {
				msg = MsgInvalidCredentials
			}
			return fail(r, OutcomeRejected, msg)
		case errors.Is(err, session.ErrBackendUnavailable):
			slog.Warn("auth_event", "event", "backend_unavailable", "role", r, "error", err)
			return fail(r, OutcomeUnavailable, MsgUnavailable)
		default:
			slog.Error("auth_event", "event", "login_error", "role", r, "error", err)
			return fail(r, OutcomeUnavailable, MsgUnavailable)
		}
	}

	if grant.Role != r {
		slog.Warn("auth_event", "event", "role_mismatch", "requested", r, "granted", grant.Role)
		return fail(r, OutcomeRoleMismatch, MsgInvalidCredentials)
	}
	if err := grant.Validate(); err != nil {
		slog.Error("auth_event", "event", "incomplete_grant", "role", r, "error", err)
		return fail(r, OutcomeBadGrant, MsgSignInFailed)
	}

	if err := deps.Sessions.Save(ctx, grant.Token, grant.Role, grant.Identity); err != nil {
		slog.Error("auth_event", "event", "session_save_failed", "role", r, "error", err)
		return fail(r, OutcomeSessionError, MsgSignInFailed)
	}

	slog.Info("auth_event", "event", "login_success", "identifier", identifier, "role", r, "profile_id", input.Meta.ProfileID)
	if deps.Metrics != nil {
		deps.Metrics.RecordLogin(string(r), OutcomeSuccess)
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(grant.Identity.ID, identifier, string(r), audit.CategorySession, audit.ActionLogin).
		WithProfile(input.Meta.ProfileID).
		WithRequest(input.Meta.IPAddress, input.Meta.UserAgent))

	return LoginResult{
		OK:       true,
		Role:     grant.Role,
		Identity: grant.Identity,
		Redirect: navigation.HomeRoute(grant.Role),
	}
}

func recordLoginFailure(ctx context.Context, deps LoginDeps, meta RequestMeta, identifier string, r role.Role, outcome string) {
	slog.Info("auth_event", "event", "login_failed", "identifier", identifier, "role", r, "reason", outcome)
	if deps.Metrics != nil {
		deps.Metrics.RecordLogin(string(r), outcome)
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent("", identifier, string(r), audit.CategorySecurity, audit.ActionLoginFailed).
		WithSeverity(audit.SeverityWarning).
		WithDescription(outcome).
		WithProfile(meta.ProfileID).
		WithRequest(meta.IPAddress, meta.UserAgent))
}

// recordAudit saves an event; audit failures never fail the operation.
func recordAudit(ctx context.Context, rec AuditRecorder, event audit.Event) {
	if rec == nil {
		return
	}
	if err := rec.Save(ctx, event); err != nil {
		slog.Error("audit_error", "action", event.Action, "error", err)
	}
}
