package email

import (
	"bytes"
	"html/template"
	"time"
)

var lockoutTemplate = template.Must(template.New("lockout").Parse(`<p>Hi {{.Name}},</p>
<p>Your {{.Account}} account was locked after {{.Attempts}} failed sign-in attempts.</p>
<p>You can try again after {{.Until}}. If this wasn't you, reset your password and contact your car wash.</p>`))

// LockoutNotice composes the e-mail sent when an account gets locked.
// PRE: to is non-empty
// POST: Returns a request with an escaped HTML body
func LockoutNotice(to, name, account string, attempts int, until time.Time) (SendRequest, error) {
	if name == "" {
		name = to
	}
	var body bytes.Buffer
	err := lockoutTemplate.Execute(&body, map[string]any{
		"Name":     name,
		"Account":  account,
		"Attempts": attempts,
		"Until":    until.UTC().Format("15:04 MST, 2 Jan 2006"),
	})
	if err != nil {
		return SendRequest{}, err
	}
	return SendRequest{
		To:       []string{to},
		Subject:  "Your rewards account has been locked",
		HTML:     body.String(),
		Category: CategoryLockout,
	}, nil
}
