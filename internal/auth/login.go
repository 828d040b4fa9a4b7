package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	uid, err := s.provider.Verify(ctx, email, password)
	if err != nil {
		return "", err
	}
	a, err := s.store.GetAccount(ctx, uid)
	if err != nil {
		// A credential whose account never got written.
		if ledger.KindOf(err) == ledger.KindNotFound {
			return "", ErrInvalidCredentials
		}
		return "", ledger.Upstream("login", err)
	}
	return s.tokens.Issue(a.ID, a.Role)
}

func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	token, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token})
}
