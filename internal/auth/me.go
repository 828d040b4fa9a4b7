package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
)

// Me returns the currently authenticated account's profile.
func (h *Handler) Me(c echo.Context) error {
	a, err := h.svc.Me(c.Request().Context(), httpx.UserID(c))
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":       a.ID,
		"name":     a.Name,
		"email":    a.Email,
		"role":     a.Role,
		"balance":  a.Balance,
		"linked":   a.LinkedExternalID != "",
		"joinedAt": a.CreatedAt,
	})
}
