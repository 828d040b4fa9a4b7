package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/events"
	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type MarkPaidRequest struct {
	PayoutReference string `json:"payoutReference" validate:"max=128"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ListPendingWithdrawals returns every request waiting for a payout decision.
func (h *Handler) ListPendingWithdrawals(c echo.Context) error {
	ws, err := h.ledger.Withdrawals(c.Request().Context(), ledger.WithdrawalFilter{Status: ledger.WithdrawalPending})
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if ws == nil {
		ws = []ledger.WithdrawalRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"pending_withdrawals": ws})
}

// MarkWithdrawalPaid records that the payout left the bank.
func (h *Handler) MarkWithdrawalPaid(c echo.Context) error {
	req := new(MarkPaidRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	ctx := c.Request().Context()
	w, err := h.ledger.MarkWithdrawalPaid(ctx, c.Param("id"), req.PayoutReference)
	h.metrics.Withdrawal("mark_paid", err)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.decided(ctx, c, w)
	return c.JSON(http.StatusOK, w)
}

// RejectWithdrawal fails a pending request and refunds the driver.
func (h *Handler) RejectWithdrawal(c echo.Context) error {
	req := new(RejectRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	ctx := c.Request().Context()
	w, err := h.ledger.RejectWithdrawal(ctx, c.Param("id"), req.Reason)
	h.metrics.Withdrawal("reject", err)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.decided(ctx, c, w)
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) decided(ctx context.Context, c echo.Context, w ledger.WithdrawalRequest) {
	h.log.Info("withdrawal decided",
		zap.String("withdrawal_id", w.ID),
		zap.String("status", string(w.Status)),
		zap.String("admin_id", httpx.UserID(c)),
	)
	ev := events.WithdrawalDecided{
		WithdrawalID: w.ID,
		AccountID:    w.AccountID,
		Amount:       w.Amount,
		Status:       string(w.Status),
	}
	if w.DecidedAt != nil {
		ev.DecidedAt = *w.DecidedAt
	}
	h.publish(ctx, events.TopicWithdrawalDecided, w.AccountID, ev)
	h.notifyDecision(ctx, w)
}
