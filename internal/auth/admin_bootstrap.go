package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

var ErrBootstrapDisabled = ledger.NewError(ledger.KindForbidden, "bootstrap_disabled", "Admin bootstrap is disabled.")

type BootstrapAdminRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
}

// BootstrapAdmin promotes the account registered under email to admin when
// secret matches the configured bootstrap secret.
func (s *Service) BootstrapAdmin(ctx context.Context, email, secret string) (string, error) {
	if s.bootstrapSecret == "" {
		return "", ErrBootstrapDisabled
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.bootstrapSecret)) != 1 {
		return "", ledger.ErrForbidden
	}
	return s.Promote(ctx, email)
}

// Promote sets the admin role on the account registered under email.
func (s *Service) Promote(ctx context.Context, email string) (string, error) {
	cred, err := s.store.GetCredentialByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if ledger.KindOf(err) == ledger.KindNotFound {
			return "", ledger.ErrAccountNotFound
		}
		return "", ledger.Upstream("promote admin", err)
	}
	if err := s.store.SetRole(ctx, cred.AccountID, ledger.RoleAdmin); err != nil {
		return "", ledger.Upstream("promote admin", err)
	}
	return cred.AccountID, nil
}

func (h *Handler) BootstrapAdmin(c echo.Context) error {
	req := new(BootstrapAdminRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	uid, err := h.svc.BootstrapAdmin(c.Request().Context(), req.Email, req.Secret)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.log.Warn("account promoted to admin", zap.String("account_id", uid))
	return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "email": normalizeEmail(req.Email)})
}
