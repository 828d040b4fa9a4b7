package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
)

type TopupRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"max=128"`
}

type TopupResponse struct {
	TransactionID string `json:"transactionId"`
	NewBalance    int64  `json:"newBalance"`
}

// AdminTopUp credits a confirmed payment to an account.
func (h *Handler) AdminTopUp(c echo.Context) error {
	req := new(TopupRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	id := c.Param("id")
	tx, balance, err := h.ledger.TopUp(c.Request().Context(), id, req.Amount, req.Reference)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.log.Info("account topped up",
		zap.String("account_id", id),
		zap.Int64("amount", req.Amount),
		zap.String("admin_id", httpx.UserID(c)),
	)
	return c.JSON(http.StatusOK, TopupResponse{TransactionID: tx.ID, NewBalance: balance})
}
