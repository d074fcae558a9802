package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	emailAdapter "rewards/internal/adapters/email"
	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

// PrincipalStoreForLogin defines the store interface needed by BackendLogin.
type PrincipalStoreForLogin interface {
	GetByEmail(ctx context.Context, r role.Role, email string) (principal.Principal, error)
	GetByPhone(ctx context.Context, r role.Role, phone string) (principal.Principal, error)
	Save(ctx context.Context, p principal.Principal) error
}

// TokenIssuer mints access tokens for authenticated principals.
type TokenIssuer interface {
	Issue(p principal.Principal) (string, error)
}

// BackendLoginRecorder counts loyalty API logins.
type BackendLoginRecorder interface {
	RecordBackendLogin(role, outcome string)
}

// BackendLoginInput carries input for the backend login orchestrator.
// Phone is accepted only for customers.
type BackendLoginInput struct {
	Role      role.Role
	Email     string
	Phone     string
	Password  string
	IPAddress string
}

// BackendLoginResult carries the principal and its access token.
type BackendLoginResult struct {
	Principal   principal.Principal
	AccessToken string
}

// BackendLoginDeps holds dependencies for BackendLogin. Notices, Metrics and Now are optional.
type BackendLoginDeps struct {
	Principals PrincipalStoreForLogin
	Tokens     TokenIssuer
	Notices    emailAdapter.Sender
	Metrics    BackendLoginRecorder
	Now        func() time.Time
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
	ErrAccountInactive    = errors.New("account is inactive")
)

// ExecuteBackendLogin checks credentials against the principal of one role and issues a token.
// PRE: input.Role is valid
// POST: On success failed logins are reset and a token is returned; on a wrong password the failure is recorded
// INVARIANT: A locked or inactive principal never receives a token
func ExecuteBackendLogin(ctx context.Context, input BackendLoginInput, deps BackendLoginDeps) (BackendLoginResult, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	record := func(outcome string) {
		if deps.Metrics != nil {
			deps.Metrics.RecordBackendLogin(string(input.Role), outcome)
		}
	}

	email := strings.TrimSpace(input.Email)
	phone := strings.TrimSpace(input.Phone)
	login := email
	if login == "" {
		login = phone
	}
	if !input.Role.Valid() || login == "" || input.Password == "" {
		record("bad_request")
		return BackendLoginResult{}, ErrInvalidCredentials
	}

	var (
		p   principal.Principal
		err error
	)
	switch {
	case email != "":
		p, err = deps.Principals.GetByEmail(ctx, input.Role, email)
	case input.Role == role.Customer:
		p, err = deps.Principals.GetByPhone(ctx, input.Role, phone)
	default:
		err = principal.ErrCustomerPhone
	}
	if err != nil {
		slog.Info("auth_event", "event", "api_login_failed", "login", login, "role", input.Role, "reason", "not_found")
		record("not_found")
		return BackendLoginResult{}, ErrInvalidCredentials
	}

	if p.IsLocked(now()) {
		slog.Info("auth_event", "event", "api_login_blocked", "login", login, "role", input.Role, "reason", "locked")
		record("locked")
		return BackendLoginResult{}, ErrAccountLocked
	}

	if err := p.CheckPassword(input.Password); err != nil {
		lockedNow := p.RecordFailedLogin(now())
		if err := deps.Principals.Save(ctx, p); err != nil {
			slog.Error("auth_event", "event", "failed_login_not_saved", "principal_id", p.ID, "error", err)
		}
		slog.Info("auth_event", "event", "api_login_failed", "login", login, "role", input.Role,
			"reason", "wrong_password", "failed_logins", p.FailedLogins, "ip", input.IPAddress)
		if lockedNow {
			sendLockoutNotice(ctx, deps.Notices, p)
			record("locked")
			return BackendLoginResult{}, ErrAccountLocked
		}
		record("wrong_password")
		return BackendLoginResult{}, ErrInvalidCredentials
	}

	if !p.CanSignIn() {
		slog.Info("auth_event", "event", "api_login_blocked", "login", login, "role", input.Role, "reason", "inactive")
		record("inactive")
		return BackendLoginResult{}, ErrAccountInactive
	}

	if p.FailedLogins > 0 || !p.LockedUntil.IsZero() {
		p.ResetFailedLogins()
		if err := deps.Principals.Save(ctx, p); err != nil {
			slog.Error("auth_event", "event", "reset_not_saved", "principal_id", p.ID, "error", err)
		}
	}

	token, err := deps.Tokens.Issue(p)
	if err != nil {
		record("error")
		return BackendLoginResult{}, err
	}

	slog.Info("auth_event", "event", "api_login_success", "principal_id", p.ID, "role", p.Role)
	record("success")
	return BackendLoginResult{Principal: p, AccessToken: token}, nil
}

func sendLockoutNotice(ctx context.Context, sender emailAdapter.Sender, p principal.Principal) {
	if sender == nil || p.Email == "" {
		return
	}
	req, err := emailAdapter.LockoutNotice(p.Email, p.Name, p.Role.Label(), p.FailedLogins, p.LockedUntil)
	if err != nil {
		slog.Error("lockout_notice_failed", "principal_id", p.ID, "error", err)
		return
	}
	if _, err := sender.Send(ctx, req); err != nil {
		slog.Error("lockout_notice_failed", "principal_id", p.ID, "error", err)
	}
}
