// Package backend talks to the rewards backend's auth endpoints over HTTP/JSON.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rewards/internal/domain/role"
	"rewards/internal/domain/session"
)

// DefaultTimeout bounds a single round trip to the backend.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a backend answer is read.
const maxBodyBytes = 1 << 20

// Client is the rewards backend API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client. A nil httpClient gets DefaultTimeout.
// PRE: baseURL is an absolute URL without trailing path
// POST: Returns a ready client
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// credentials is the login body. Numeric identifiers travel as phone.
type credentials struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// Profile is the body of a login or /auth/me answer.
// Exactly one of the *_id keys names the principal, depending on role.
type Profile struct {
	AccessToken    string `json:"access_token,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	Role           string `json:"role,omitempty"`
	AdminID        string `json:"admin_id,omitempty"`
	OrgID          string `json:"org_id,omitempty"`
	BusinessID     string `json:"business_id,omitempty"`
	StaffID        string `json:"staff_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Points         *int   `json:"points,omitempty"`
}

// Identity maps the profile's role-specific keys onto an Identity.
func (p Profile) Identity(r role.Role) session.Identity {
	id := session.Identity{
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		OrganizationID: firstNonEmpty(p.OrganizationID, p.OrgID),
		BusinessID:     p.BusinessID,
		StaffID:        p.StaffID,
		CustomerID:     p.CustomerID,
	}
	if p.Points != nil {
		id.Points = *p.Points
	}
	switch r {
	case role.Admin:
		id.ID = p.AdminID
	case role.Organization:
		id.ID = p.OrgID
	case role.Business:
		id.ID = p.BusinessID
	case role.Staff:
		id.ID = p.StaffID
	case role.Customer:
		id.ID = p.CustomerID
	}
	return id
}

// Authenticate posts credentials to the login endpoint of r and returns the grant.
// It never tries a different endpoint.
// PRE: r is valid; identifier and password are non-empty
// POST: Returns a grant, a *session.RejectedError, or an error wrapping session.ErrBackendUnavailable
func (c *Client) Authenticate(ctx context.Context, r role.Role, identifier, password string) (session.Grant, error) {
	path := r.LoginPath()
	if path == "" {
		return session.Grant{}, role.ErrUnknownRole
	}
	body := credentials{Password: password}
	identifier = strings.TrimSpace(identifier)
	if role.IsPhoneNumber(identifier) {
		body.Phone = identifier
	} else {
		body.Email = identifier
	}

	var p Profile
	if err := c.do(ctx, http.MethodPost, path, "", body, &p); err != nil {
		return session.Grant{}, err
	}

	granted := r
	if p.Role != "" {
		parsed, err := role.Parse(p.Role)
		if err != nil {
			return session.Grant{}, fmt.Errorf("backend returned role %q: %w", p.Role, err)
		}
		granted = parsed
	}
	return session.Grant{
		Token:    p.AccessToken,
		Role:     granted,
		Identity: p.Identity(granted),
	}, nil
}

// Me fetches the profile behind a bearer token.
// PRE: token is non-empty
// POST: Returns the profile, session.ErrUnauthenticated on 401, or a backend error
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &p)
	if err != nil {
		var rejected *session.RejectedError
		if errors.As(err, &rejected) && rejected.Status == http.StatusUnauthorized {
			return Profile{}, session.ErrUnauthenticated
		}
		return Profile{}, err
	}
	return p, nil
}

// Ping checks the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", session.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

// do performs one JSON round trip, attaching the bearer token when given.
func (c *Client) do(ctx context.Context, method, path, token string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	return parseResponse(resp, target)
}

// errorBody is a FastAPI-style error. detail is a string or a list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func parseResponse(resp *http.Response, target any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", session.ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", session.ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &session.RejectedError{Status: resp.StatusCode, Detail: detailOf(raw)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: unexpected status %d", session.ErrBackendUnavailable, resp.StatusCode)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: decode response: %v", session.ErrBackendUnavailable, err)
	}
	return nil
}

// detailOf extracts a human-readable message from an error body.
func detailOf(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
