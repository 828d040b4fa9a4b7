package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type TransactionsResponse struct {
	Transactions []ledger.Transaction `json:"transactions"`
}

// Transactions returns the authenticated account's ledger, newest first.
func (h *Handler) Transactions(c echo.Context) error {
	return h.writeTransactions(c, httpx.UserID(c))
}

// AdminUserTransactions returns any account's ledger.
func (h *Handler) AdminUserTransactions(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return httpx.WriteError(c, h.log, ledger.ErrInvalidInput)
	}
	return h.writeTransactions(c, id)
}

func (h *Handler) writeTransactions(c echo.Context, accountID string) error {
	txs, err := h.ledger.Transactions(c.Request().Context(), accountID)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	return c.JSON(http.StatusOK, TransactionsResponse{Transactions: txs})
}
