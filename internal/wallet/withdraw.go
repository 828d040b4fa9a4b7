package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/events"
	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type WithdrawalRequestBody struct {
	AccountID string `json:"accountId" validate:"required"`
	Amount    int64  `json:"amount" validate:"required"`
}

type WithdrawalResponse struct {
	WithdrawalID  string `json:"withdrawalId"`
	TransactionID string `json:"transactionId"`
	NewBalance    int64  `json:"newBalance"`
}

type WithdrawalsResponse struct {
	Withdrawals []ledger.WithdrawalRequest `json:"withdrawals"`
}

// RequestWithdrawal files a withdrawal for the signed-in driver. The account
// in the body must be the caller's own.
func (h *Handler) RequestWithdrawal(c echo.Context) error {
	req := new(WithdrawalRequestBody)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if req.AccountID != httpx.UserID(c) {
		return httpx.WriteError(c, h.log, ledger.ErrForbidden)
	}

	ctx := c.Request().Context()
	sub, err := h.ledger.SubmitWithdrawal(ctx, req.AccountID, req.Amount)
	h.metrics.Withdrawal("submit", err)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}

	h.log.Info("withdrawal requested",
		zap.String("withdrawal_id", sub.Withdrawal.ID),
		zap.String("account_id", sub.Withdrawal.AccountID),
		zap.Int64("amount", sub.Withdrawal.Amount),
	)
	h.publish(ctx, events.TopicWithdrawalRequested, sub.Withdrawal.AccountID, events.WithdrawalRequested{
		WithdrawalID:  sub.Withdrawal.ID,
		AccountID:     sub.Withdrawal.AccountID,
		Amount:        sub.Withdrawal.Amount,
		TransactionID: sub.Transaction.ID,
		RequestedAt:   sub.Withdrawal.RequestedAt,
	})

	return c.JSON(http.StatusOK, WithdrawalResponse{
		WithdrawalID:  sub.Withdrawal.ID,
		TransactionID: sub.Transaction.ID,
		NewBalance:    sub.NewBalance,
	})
}

// MyWithdrawals lists the signed-in driver's requests, newest first.
func (h *Handler) MyWithdrawals(c echo.Context) error {
	ws, err := h.ledger.Withdrawals(c.Request().Context(), ledger.WithdrawalFilter{AccountID: httpx.UserID(c)})
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if ws == nil {
		ws = []ledger.WithdrawalRequest{}
	}
	return c.JSON(http.StatusOK, WithdrawalsResponse{Withdrawals: ws})
}
