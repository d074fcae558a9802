package orchestrators

import (
	"context"
	"log/slog"

	"rewards/internal/domain/audit"
	"rewards/internal/domain/session"
)

// SessionClearer defines the session store operations needed by Logout.
type SessionClearer interface {
	Current() session.Session
	Clear(ctx context.Context) error
}

// LogoutInput carries input for the logout orchestrator.
// Expired marks a logout forced by an invalid token rather than the user.
type LogoutInput struct {
	Expired bool
	Meta    RequestMeta
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Sessions SessionClearer
	Audit    AuditRecorder
}

// ExecuteLogout clears the session. The token is not revoked with the backend.
// PRE: deps.Sessions is set
// POST: Session store is empty
func ExecuteLogout(ctx context.Context, input LogoutInput, deps LogoutDeps) error {
	prev := deps.Sessions.Current()
	if err := deps.Sessions.Clear(ctx); err != nil {
		slog.Error("auth_event", "event", "logout_failed", "profile_id", input.Meta.ProfileID, "error", err)
		return err
	}

	action, event := audit.ActionLogout, "logout"
	if input.Expired {
		action, event = audit.ActionExpired, "session_expired"
	}
	slog.Info("auth_event", "event", event, "role", prev.Role, "profile_id", input.Meta.ProfileID)

	if !prev.Authenticated() {
		return nil
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(prev.Identity.ID, prev.Identity.DisplayName(), string(prev.Role), audit.CategorySession, action).
		WithProfile(input.Meta.ProfileID).
		WithRequest(input.Meta.IPAddress, input.Meta.UserAgent))
	return nil
}
