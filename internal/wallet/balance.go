package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/money"
)

type BalanceResponse struct {
	AccountID string          `json:"accountId"`
	Balance   int64           `json:"balance"`
	Naira     decimal.Decimal `json:"naira"`
	Display   string          `json:"display"`
}

// Balance returns the authenticated account's balance.
func (h *Handler) Balance(c echo.Context) error {
	uid := httpx.UserID(c)
	balance, err := h.ledger.Balance(c.Request().Context(), uid)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{
		AccountID: uid,
		Balance:   balance,
		Naira:     money.ToMajor(balance),
		Display:   money.WithSymbol(balance),
	})
}
