package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
)

type Submission struct {
	Withdrawal  WithdrawalRequest `json:"withdrawal"`
	Transaction Transaction       `json:"transaction"`
	NewBalance  int64             `json:"new_balance"`
}

// SubmitWithdrawal files a withdrawal request for a driver. The request, the
// balance debit and the pending ledger line are written in one transaction,
// and the one-pending-request check runs inside that same transaction with the
// account row locked.
func (s *Service) SubmitWithdrawal(ctx context.Context, accountID string, amount int64) (Submission, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Submission{}, ErrInvalidInput
	}
	if amount < s.minWithdrawal {
		return Submission{}, ErrBelowMinimum
	}

	now := s.clock.Now()
	var out Submission
	err := s.store.WithTx(ctx, func(q Queries) error {
		acct, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acct.Role != RoleDriver {
			return ErrAccountNotFound
		}
		if amount > acct.Balance {
			return ErrInsufficientBalance
		}

		profile, err := q.GetBankProfile(ctx, accountID)
		if errors.Is(err, ErrProfileNotFound) {
			return ErrProfileIncomplete
		}
		if err != nil {
			return err
		}
		if !profile.Complete() {
			return ErrProfileIncomplete
		}

		pending, err := q.ListWithdrawals(ctx, WithdrawalFilter{AccountID: accountID, Status: WithdrawalPending})
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return ErrDuplicatePendingRequest
		}

		w := WithdrawalRequest{
			ID:            s.newID(),
			AccountID:     accountID,
			Amount:        amount,
			BankName:      strings.TrimSpace(profile.BankName),
			AccountNumber: strings.TrimSpace(profile.AccountNumber),
			Status:        WithdrawalPending,
			RequestedAt:   now,
		}
		t := Transaction{
			ID:               s.newID(),
			AccountID:        accountID,
			Amount:           amount,
			Type:             TxWithdrawalRequest,
			Status:           TxPending,
			RelatedRequestID: w.ID,
			CreatedAt:        now,
		}
		w.TransactionID = t.ID

		if err := q.InsertWithdrawal(ctx, w); err != nil {
			return err
		}
		acct, err = applyDebit(ctx, q, acct, amount)
		if err != nil {
			return err
		}
		if err := q.InsertTransaction(ctx, t); err != nil {
			return err
		}
		out = Submission{Withdrawal: w, Transaction: t, NewBalance: acct.Balance}
		return nil
	})
	if err != nil {
		return Submission{}, Upstream("submit withdrawal", err)
	}
	return out, nil
}

// MarkWithdrawalPaid records the payout of a pending request and completes its
// ledger line.
func (s *Service) MarkWithdrawalPaid(ctx context.Context, id, payoutReference string) (WithdrawalRequest, error) {
	return s.decide(ctx, "mark withdrawal paid", id, func(q Queries, w *WithdrawalRequest) error {
		w.Status = WithdrawalPaid
		w.PayoutReference = strings.TrimSpace(payoutReference)
		return q.SetTransactionStatus(ctx, w.TransactionID, TxCompleted)
	})
}

// RejectWithdrawal fails a pending request, returns the held amount to the
// account and records the refund.
func (s *Service) RejectWithdrawal(ctx context.Context, id, reason string) (WithdrawalRequest, error) {
	return s.decide(ctx, "reject withdrawal", id, func(q Queries, w *WithdrawalRequest) error {
		w.Status = WithdrawalRejected
		w.Reason = strings.TrimSpace(reason)
		if err := q.SetTransactionStatus(ctx, w.TransactionID, TxFailed); err != nil {
			return err
		}
		acct, err := q.LockAccount(ctx, w.AccountID)
		if err != nil {
			return err
		}
		if _, err := applyCredit(ctx, q, acct, w.Amount); err != nil {
			return err
		}
		return q.InsertTransaction(ctx, Transaction{
			ID:               s.newID(),
			AccountID:        w.AccountID,
			Amount:           w.Amount,
			Type:             TxWithdrawalRefund,
			Status:           TxCompleted,
			RelatedRequestID: w.ID,
			CreatedAt:        *w.DecidedAt,
		})
	})
}

// decide moves a pending request to a terminal state. Terminal requests never
// move again.
func (s *Service) decide(ctx context.Context, op, id string, apply func(q Queries, w *WithdrawalRequest) error) (WithdrawalRequest, error) {
	if strings.TrimSpace(id) == "" {
		return WithdrawalRequest{}, ErrInvalidInput
	}
	var out WithdrawalRequest
	err := s.store.WithTx(ctx, func(q Queries) error {
		w, err := q.LockWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w.Status != WithdrawalPending {
			return ErrInvalidTransition
		}
		now := s.clock.Now()
		w.DecidedAt = &now
		if err := apply(q, &w); err != nil {
			return err
		}
		if err := q.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return WithdrawalRequest{}, Upstream(op, err)
	}
	return out, nil
}

func (s *Service) Withdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return WithdrawalRequest{}, Upstream("get withdrawal", err)
	}
	return w, nil
}

// Withdrawals lists requests matching f, newest first.
func (s *Service) Withdrawals(ctx context.Context, f WithdrawalFilter) ([]WithdrawalRequest, error) {
	ws, err := s.store.ListWithdrawals(ctx, f)
	if err != nil {
		return nil, Upstream("list withdrawals", err)
	}
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].RequestedAt.After(ws[j].RequestedAt)
	})
	return ws, nil
}
