package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type Stats struct {
	Students           int   `json:"students"`
	Drivers            int   `json:"drivers"`
	Admins             int   `json:"admins"`
	BalanceHeld        int64 `json:"balanceHeld"`
	LinkedAccounts     int   `json:"linkedAccounts"`
	PendingWithdrawals int   `json:"pendingWithdrawals"`
	PendingAmount      int64 `json:"pendingAmount"`
}

// Collect reads accounts and the pending withdrawal queue concurrently.
func Collect(ctx context.Context, svc *ledger.Service) (Stats, error) {
	var (
		accounts []ledger.Account
		pending  []ledger.WithdrawalRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = svc.Accounts(gctx, ledger.AccountFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = svc.Withdrawals(gctx, ledger.WithdrawalFilter{Status: ledger.WithdrawalPending})
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, a := range accounts {
		switch a.Role {
		case ledger.RoleStudent:
			s.Students++
		case ledger.RoleDriver:
			s.Drivers++
		case ledger.RoleAdmin:
			s.Admins++
		}
		s.BalanceHeld += a.Balance
		if a.LinkedExternalID != "" {
			s.LinkedAccounts++
		}
	}
	s.PendingWithdrawals = len(pending)
	for _, w := range pending {
		s.PendingAmount += w.Amount
	}
	return s, nil
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	s, err := Collect(c.Request().Context(), h.ledger)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}
