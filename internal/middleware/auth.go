// Package middleware authenticates requests and enforces route access.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/auth"
	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

// Verifier turns a bearer token into a session.
type Verifier interface {
	Verify(token string) (auth.Session, error)
}

// Authenticate sets user_id and role from a bearer token. Requests without an
// Authorization header pass through unauthenticated. A malformed or invalid
// token is rejected with 401.
func Authenticate(v Verifier, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}
			const prefix = "Bearer "
			if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
				return httpx.WriteError(c, log, ledger.ErrUnauthorized)
			}
			sess, err := v.Verify(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				return httpx.WriteError(c, log, ledger.ErrUnauthorized)
			}
			c.Set("user_id", sess.AccountID)
			c.Set("role", string(sess.Role))
			return next(c)
		}
	}
}
