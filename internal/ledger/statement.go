package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// StatementReference is the stable reference for an account's monthly statement.
func StatementReference(accountID string, year, month int) string {
	suffix := accountID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("ST-%04d%02d-%s", year, month, suffix)
}

// MonthBounds returns the first and last instant of a calendar month in loc.
func MonthBounds(year, month int, loc *time.Location) (time.Time, time.Time, error) {
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end, nil
}

// GenerateStatement summarises a driver's month and stores it. Calling it again
// for the same month replaces the totals in place rather than adding a record.
func (s *Service) GenerateStatement(ctx context.Context, accountID string, year, month int) (Statement, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Statement{}, ErrInvalidInput
	}
	start, end, err := MonthBounds(year, month, s.location)
	if err != nil {
		return Statement{}, err
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && acct.Role != RoleDriver) {
		return Statement{}, ErrDriverNotFound
	}
	if err != nil {
		return Statement{}, Upstream("generate statement", err)
	}
	if _, err := s.store.GetBankProfile(ctx, accountID); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Statement{}, ErrDriverNotFound
		}
		return Statement{}, Upstream("generate statement", err)
	}
	if strings.TrimSpace(acct.Email) == "" {
		return Statement{}, ErrMissingContact
	}

	var (
		txs []Transaction
		ws  []WithdrawalRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, TransactionFilter{AccountID: accountID, From: start, To: end})
		return err
	})
	g.Go(func() error {
		var err error
		ws, err = s.store.ListWithdrawals(gctx, WithdrawalFilter{AccountID: accountID, From: start, To: end})
		return err
	})
	if err := g.Wait(); err != nil {
		return Statement{}, Upstream("generate statement", err)
	}

	stmt, err := s.store.UpsertStatement(ctx, Statement{
		ID:          s.newID(),
		AccountID:   accountID,
		Year:        year,
		Month:       month,
		Reference:   StatementReference(accountID, year, month),
		Email:       acct.Email,
		Totals:      Summarise(txs, ws),
		Status:      StatementCompleted,
		GeneratedAt: s.clock.Now(),
	})
	if err != nil {
		return Statement{}, Upstream("save statement", err)
	}
	return stmt, nil
}

// Summarise computes statement totals. Earnings count ride fares only.
func Summarise(txs []Transaction, ws []WithdrawalRequest) StatementTotals {
	totals := StatementTotals{
		TransactionCount: len(txs),
		WithdrawalCount:  len(ws),
	}
	for _, t := range txs {
		if t.Type == TxRideFare {
			totals.TotalEarnings += t.Amount
		}
	}
	for _, w := range ws {
		totals.TotalWithdrawalAmount += w.Amount
	}
	return totals
}
