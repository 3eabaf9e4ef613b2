package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotJWT is returned by Inspect for opaque tokens.
	ErrNotJWT = errors.New("token is not a jwt")
	// ErrTokenType is returned when a token's "type" claim is not the expected one.
	ErrTokenType = errors.New("unexpected token type")
)

// Claims is the subset of token claims the console reads.
type Claims struct {
	ID        string
	Subject   string
	Username  string
	Type      string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token expires before now+skew. Tokens without
// an expiry never expire.
func (c Claims) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	Type     string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

func (tc *tokenClaims) claims() Claims {
	c := Claims{
		ID:       tc.ID,
		Subject:  tc.Subject,
		Username: tc.Username,
		Type:     tc.Type,
		Issuer:   tc.Issuer,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c
}

// Inspect decodes token's claims without verifying the signature. The
// console uses it only to schedule refreshes and to display expiry; access
// decisions are made by the API that holds the key.
func Inspect(token string) (Claims, error) {
	tc := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, tc); err != nil {
		return Claims{}, errors.Join(ErrNotJWT, err)
	}
	return tc.claims(), nil
}
