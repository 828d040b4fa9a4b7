package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
)

// GET /user/:id/profile
func (h *Handler) GetPublicProfile(c echo.Context) error {
	a, err := h.ledger.Account(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, publicProfile(a))
}
