package driver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
)

type BankProfileRequest struct {
	BankName      string `json:"bankName" validate:"required,max=100"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric,min=6,max=20"`
}

func (h *Handler) BankProfile(c echo.Context) error {
	p, err := h.ledger.BankProfile(c.Request().Context(), httpx.UserID(c))
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateBankProfile replaces the payout details used by future withdrawals.
func (h *Handler) UpdateBankProfile(c echo.Context) error {
	req := new(BankProfileRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	p, err := h.ledger.UpdateBankProfile(c.Request().Context(), httpx.UserID(c), req.BankName, req.AccountNumber)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}
