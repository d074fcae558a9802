package loyaltyapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

// DefaultTokenTTL is how long an access token stays valid.
const DefaultTokenTTL = 30 * time.Minute

// ErrTokenInvalid covers bad signatures, expired tokens and missing claims.
var ErrTokenInvalid = errors.New("invalid access token")

// Claims are the JWT claims of a loyalty API access token.
type Claims struct {
	jwt.RegisteredClaims
	Role       role.Role `json:"role"`
	OrgID      string    `json:"org_id,omitempty"`
	BusinessID string    `json:"business_id,omitempty"`
	StaffID    string    `json:"staff_id,omitempty"`
	CustomerID string    `json:"customer_id,omitempty"`
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer. ttl <= 0 uses DefaultTokenTTL.
// PRE: secret is non-empty
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a signed access token for the principal.
// PRE: p has an id and a valid role
// POST: Returns a token that Parse accepts until the TTL elapses
func (i *Issuer) Issue(p principal.Principal) (string, error) {
	now := i.now()
	scope := p.Scope()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Role:       p.Role,
		OrgID:      scope.OrganizationID,
		BusinessID: scope.BusinessID,
		StaffID:    scope.StaffID,
		CustomerID: scope.CustomerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims.
// It checks the signature, expiry, and required fields.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	return claims, nil
}
