package user

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type UpdateProfileRequest struct {
	Name         string `json:"name" validate:"max=100"`
	PhoneNumber  string `json:"phoneNumber" validate:"omitempty,e164|numeric,max=20"`
	Matric       string `json:"matric" validate:"max=32"`
	LicensePlate string `json:"licensePlate" validate:"max=16"`
}

// PATCH /user/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	req := new(UpdateProfileRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	a, err := h.ledger.UpdateAccountDetails(c.Request().Context(), httpx.UserID(c), ledger.AccountDetails{
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		Matric:       req.Matric,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.log.Info("profile updated", zap.String("account_id", a.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
		"profile": echo.Map{
			"id":           a.ID,
			"name":         a.Name,
			"role":         a.Role,
			"phoneNumber":  a.PhoneNumber,
			"matric":       a.Matric,
			"licensePlate": a.LicensePlate,
		},
	})
}
