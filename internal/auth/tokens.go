package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tap2go/tap2go/internal/clock"
	"github.com/tap2go/tap2go/internal/ledger"
)

// Claims carries the session subject and role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Session is what a verified token grants.
type Session struct {
	AccountID string
	Role      ledger.Role
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, c clock.Clock) *TokenIssuer {
	if c == nil {
		c = clock.RealClock{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: c}
}

func (t *TokenIssuer) Issue(accountID string, role ledger.Role) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", ledger.Upstream("sign token", err)
	}
	return signed, nil
}

// Verify parses a token and returns its session. Any failure is ErrUnauthorized.
func (t *TokenIssuer) Verify(tokenStr string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Session{}, ledger.ErrUnauthorized
	}
	role := ledger.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return Session{}, ledger.ErrUnauthorized
	}
	return Session{AccountID: claims.Subject, Role: role}, nil
}
