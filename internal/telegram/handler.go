package telegram

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
)

// Handler serves the account-side linking endpoints.
type Handler struct {
	linker *Linker
	log    *zap.Logger
}

func NewHandler(l *Linker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{linker: l, log: log}
}

// IssueLinkToken returns a deep link the signed-in user opens in Telegram.
func (h *Handler) IssueLinkToken(c echo.Context) error {
	inv, err := h.linker.IssueLinkToken(c.Request().Context(), httpx.UserID(c))
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) Unlink(c echo.Context) error {
	if err := h.linker.Unlink(c.Request().Context(), httpx.UserID(c)); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
