package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

// Access is the level a route demands.
type Access int

const (
	Public Access = iota
	// Guest routes are for callers without a session, like registration.
	Guest
	Authenticated
	Student
	Driver
	Admin
)

type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Denied
)

var ErrAlreadyAuthenticated = ledger.NewError(ledger.KindForbidden, "already_authenticated", "You are already signed in.")

// rule describes one access level. A zero role accepts any signed-in role.
type rule struct {
	needSession bool
	noSession   bool
	role        ledger.Role
}

var rules = map[Access]rule{
	Public:        {},
	Guest:         {noSession: true},
	Authenticated: {needSession: true},
	Student:       {needSession: true, role: ledger.RoleStudent},
	Driver:        {needSession: true, role: ledger.RoleDriver},
	Admin:         {needSession: true, role: ledger.RoleAdmin},
}

// Decide maps a caller to the outcome for a route of the given access level.
// Unknown levels deny.
func Decide(access Access, authenticated bool, role ledger.Role) Decision {
	r, ok := rules[access]
	switch {
	case !ok:
		return Denied
	case r.noSession && authenticated:
		return Denied
	case r.needSession && !authenticated:
		return Unauthenticated
	case r.role != "" && role != r.role:
		return Denied
	}
	return Allow
}

// Require enforces access on a route. It must run after Authenticate.
func Require(access Access, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authenticated := httpx.UserID(c) != ""
			switch Decide(access, authenticated, httpx.Role(c)) {
			case Unauthenticated:
				return httpx.WriteError(c, log, ledger.ErrUnauthorized)
			case Denied:
				if access == Guest {
					return httpx.WriteError(c, log, ErrAlreadyAuthenticated)
				}
				return httpx.WriteError(c, log, ledger.ErrForbidden)
			}
			return next(c)
		}
	}
}
