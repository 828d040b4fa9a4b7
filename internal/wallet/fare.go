package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tap2go/tap2go/internal/httpx"
)

type FareRequest struct {
	DriverID string `json:"driverId" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// PayFare charges the signed-in student and credits the driver.
func (h *Handler) PayFare(c echo.Context) error {
	req := new(FareRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	receipt, err := h.ledger.PayFare(c.Request().Context(), httpx.UserID(c), req.DriverID, req.Amount)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, receipt)
}
