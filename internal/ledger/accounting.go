package ledger

import (
	"context"
	"math"
	"sort"
	"strings"
)

// applyDebit subtracts amount from an account already locked in q.
func applyDebit(ctx context.Context, q Queries, a Account, amount int64) (Account, error) {
	if amount <= 0 {
		return a, ErrInvalidAmount
	}
	if amount > a.Balance {
		return a, ErrInsufficientBalance
	}
	a.Balance -= amount
	if err := q.SetBalance(ctx, a.ID, a.Balance); err != nil {
		return a, err
	}
	return a, nil
}

// applyCredit adds amount to an account already locked in q.
func applyCredit(ctx context.Context, q Queries, a Account, amount int64) (Account, error) {
	if amount <= 0 {
		return a, ErrInvalidAmount
	}
	if a.Balance > math.MaxInt64-amount {
		return a, ErrInvalidAmount
	}
	a.Balance += amount
	if err := q.SetBalance(ctx, a.ID, a.Balance); err != nil {
		return a, err
	}
	return a, nil
}

// Debit removes amount from the account and returns the new balance.
// It never leaves a negative balance.
func (s *Service) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	var balance int64
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		a, err = applyDebit(ctx, q, a, amount)
		balance = a.Balance
		return err
	})
	if err != nil {
		return 0, Upstream("debit", err)
	}
	return balance, nil
}

// Credit adds amount to the account and returns the new balance.
func (s *Service) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	var balance int64
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		a, err = applyCredit(ctx, q, a, amount)
		balance = a.Balance
		return err
	})
	if err != nil {
		return 0, Upstream("credit", err)
	}
	return balance, nil
}

func (s *Service) Account(ctx context.Context, accountID string) (Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, Upstream("get account", err)
	}
	return a, nil
}

func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Transactions lists an account's transactions, newest first.
func (s *Service) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	if _, err := s.Account(ctx, accountID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, Upstream("list transactions", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

// TopUp credits a confirmed external payment to the account.
func (s *Service) TopUp(ctx context.Context, accountID string, amount int64, reference string) (Transaction, int64, error) {
	if amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}
	t := Transaction{
		ID:        s.newID(),
		AccountID: accountID,
		Amount:    amount,
		Type:      TxTopUp,
		Status:    TxCompleted,
		Reference: strings.TrimSpace(reference),
		CreatedAt: s.clock.Now(),
	}
	var balance int64
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a, err = applyCredit(ctx, q, a, amount); err != nil {
			return err
		}
		balance = a.Balance
		return q.InsertTransaction(ctx, t)
	})
	if err != nil {
		return Transaction{}, 0, Upstream("top up", err)
	}
	return t, balance, nil
}

type FareReceipt struct {
	Payment        Transaction `json:"payment"`
	Fare           Transaction `json:"fare"`
	StudentBalance int64       `json:"student_balance"`
}

// PayFare moves amount from a student to a driver. Both ledger lines and both
// balance changes commit together.
func (s *Service) PayFare(ctx context.Context, studentID, driverID string, amount int64) (FareReceipt, error) {
	if studentID == "" || driverID == "" || studentID == driverID {
		return FareReceipt{}, ErrInvalidInput
	}
	if amount <= 0 {
		return FareReceipt{}, ErrInvalidAmount
	}

	now := s.clock.Now()
	receipt := FareReceipt{
		Payment: Transaction{ID: s.newID(), AccountID: studentID, Amount: amount, Type: TxRidePayment, Status: TxCompleted, CreatedAt: now},
		Fare:    Transaction{ID: s.newID(), AccountID: driverID, Amount: amount, Type: TxRideFare, Status: TxCompleted, CreatedAt: now},
	}
	receipt.Payment.RelatedRequestID = receipt.Fare.ID
	receipt.Fare.RelatedRequestID = receipt.Payment.ID

	err := s.store.WithTx(ctx, func(q Queries) error {
		// Lock in id order so concurrent fares between the same pair cannot deadlock.
		first, second := studentID, driverID
		if second < first {
			first, second = second, first
		}
		locked := make(map[string]Account, 2)
		for _, id := range []string{first, second} {
			a, err := q.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = a
		}

		student, driver := locked[studentID], locked[driverID]
		if student.Role != RoleStudent || driver.Role != RoleDriver {
			return ErrAccountNotFound
		}
		student, err := applyDebit(ctx, q, student, amount)
		if err != nil {
			return err
		}
		if _, err := applyCredit(ctx, q, driver, amount); err != nil {
			return err
		}
		receipt.StudentBalance = student.Balance
		if err := q.InsertTransaction(ctx, receipt.Payment); err != nil {
			return err
		}
		return q.InsertTransaction(ctx, receipt.Fare)
	})
	if err != nil {
		return FareReceipt{}, Upstream("pay fare", err)
	}
	return receipt, nil
}

// Accounts lists accounts matching f, oldest first.
func (s *Service) Accounts(ctx context.Context, f AccountFilter) ([]Account, error) {
	accounts, err := s.store.ListAccounts(ctx, f)
	if err != nil {
		return nil, Upstream("list accounts", err)
	}
	return accounts, nil
}
