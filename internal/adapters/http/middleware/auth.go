package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	appsession "rewards/internal/application/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session_store"

// ProfileCookieName names the signed cookie carrying the browser profile id.
const ProfileCookieName = "rewards_profile"

// profileMaxAge keeps a browser profile for a year.
const profileMaxAge = 365 * 24 * 60 * 60

// Profiles issues and verifies the signed browser-profile cookie and binds
// each request to that profile's session store.
type Profiles struct {
	codec   *securecookie.SecureCookie
	storage appsession.Storage
	secure  bool
}

// NewProfiles creates the profile cookie codec.
// PRE: hashKey is at least 32 bytes; blockKey is nil, 16, 24 or 32 bytes
// POST: Cookies are signed with hashKey and encrypted when blockKey is set
func NewProfiles(hashKey, blockKey []byte, storage appsession.Storage, secure bool) *Profiles {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(profileMaxAge)
	return &Profiles{codec: codec, storage: storage, secure: secure}
}

// ProfileID returns the verified profile id of the request, if any.
func (p *Profiles) ProfileID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(ProfileCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var id string
	if err := p.codec.Decode(ProfileCookieName, cookie.Value, &id); err != nil {
		slog.Warn("session_event", "event", "profile_cookie_rejected", "error", err)
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// issue sets a fresh profile cookie and returns its id.
func (p *Profiles) issue(w http.ResponseWriter) (string, error) {
	id := uuid.NewString()
	encoded, err := p.codec.Encode(ProfileCookieName, id)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   profileMaxAge,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Session returns middleware that binds the request to its browser profile,
// rehydrates the profile's session store and puts it in the context.
// Requests without a valid profile cookie get a new profile.
// It does NOT block anyone; use Guard for that.
func Session(profiles *Profiles) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := profiles.ProfileID(r)
			if !ok {
				var err error
				id, err = profiles.issue(w)
				if err != nil {
					slog.Error("session_event", "event", "profile_issue_failed", "error", err)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
			}

			store := appsession.New(profiles.storage, id)
			store.Initialize(r.Context())
			next.ServeHTTP(w, r.WithContext(WithSessionStore(r.Context(), store)))
		})
	}
}

// WithSessionStore returns a context carrying store.
func WithSessionStore(ctx context.Context, store *appsession.Store) context.Context {
	return context.WithValue(ctx, sessionContextKey, store)
}

// SessionStoreFrom retrieves the session store from the request context.
// PRE: ctx is non-nil
// POST: Returns the store and true if Session middleware ran
func SessionStoreFrom(ctx context.Context) (*appsession.Store, bool) {
	store, ok := ctx.Value(sessionContextKey).(*appsession.Store)
	return store, ok && store != nil
}
