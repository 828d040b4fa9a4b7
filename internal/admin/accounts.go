package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

// GET /admin/accounts?role=driver
func (h *Handler) ListAccounts(c echo.Context) error {
	role := ledger.Role(c.QueryParam("role"))
	if role != "" && !role.Valid() {
		return httpx.WriteError(c, h.log, ledger.ErrInvalidInput)
	}
	accounts, err := h.ledger.Accounts(c.Request().Context(), ledger.AccountFilter{Role: role})
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	return c.JSON(http.StatusOK, echo.Map{"accounts": accounts})
}
