package middleware

import (
	"log/slog"
	"net/http"

	"rewards/internal/domain/route"
	"rewards/internal/domain/session"
)

// DecisionRecorder counts guard decisions.
type DecisionRecorder interface {
	RecordDecision(kind string)
}

// Guard returns middleware that gates a view on the current session.
// d is nil for paths that are not routes.
// PRE: Session middleware ran earlier in the chain
// POST: next runs only on a Render decision
func Guard(d *route.Descriptor, rec DecisionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			store, ok := SessionStoreFrom(ctx)
			if !ok {
				slog.Error("route_event", "event", "no_session_store", "path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			decision := route.Decide(store.IsReady(), store.Current(), d)
			if decision.Kind == route.Wait {
				select {
				case <-store.Ready():
					decision = route.Decide(true, store.Current(), d)
				case <-ctx.Done():
					if rec != nil {
						rec.RecordDecision(route.Wait.String())
					}
					http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
					return
				}
			}
			if rec != nil {
				rec.RecordDecision(decision.Kind.String())
			}

			switch decision.Kind {
			case route.Render:
				next.ServeHTTP(w, r)
			case route.RedirectLogin:
				if decision.ClearSession {
					if err := store.Clear(ctx); err != nil {
						slog.Error("session_event", "event", "clear_failed", "profile_id", store.ProfileID(), "error", err)
					}
				}
				logRedirect(r, store.Current(), decision)
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			case route.RedirectHome:
				logRedirect(r, store.Current(), decision)
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			default:
				http.NotFound(w, r)
			}
		})
	}
}

func logRedirect(r *http.Request, s session.Session, decision route.Decision) {
	slog.Info("route_event",
		"event", decision.Kind.String(),
		"path", r.URL.Path,
		"location", decision.Location,
		"role", string(s.Role),
	)
}
