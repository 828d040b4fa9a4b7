package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/storage/memory"
)

// stepClock advances one second on every read so records get distinct times.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store *memory.Store
	svc   *ledger.Service
	clock *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var seq atomic.Int64
	clk := &stepClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.New()
	svc := ledger.NewService(store,
		ledger.WithClock(clk),
		ledger.WithIDGenerator(func() string { return fmt.Sprintf("id-%04d", seq.Add(1)) }),
	)
	return &fixture{store: store, svc: svc, clock: clk}
}

func (f *fixture) driver(t *testing.T, id string, balance int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateAccount(ctx, ledger.Account{
		ID: id, Role: ledger.RoleDriver, Email: id + "@example.com", Name: "Driver " + id, Balance: balance,
	}); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if err := f.store.UpsertBankProfile(ctx, ledger.BankProfile{
		AccountID: id, BankName: "First Bank", AccountNumber: "0123456789",
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
}

func (f *fixture) student(t *testing.T, id string, balance int64) {
	t.Helper()
	if err := f.store.CreateAccount(context.Background(), ledger.Account{
		ID: id, Role: ledger.RoleStudent, Email: id + "@example.com", Balance: balance,
	}); err != nil {
		t.Fatalf("create student: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := f.svc.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance %s: %v", id, err)
	}
	return b
}

func TestSubmitWithdrawalDebitsAndRecords(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "A1", 5000)
	ctx := context.Background()

	sub, err := f.svc.SubmitWithdrawal(ctx, "A1", 2000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.NewBalance != 3000 || f.balance(t, "A1") != 3000 {
		t.Fatalf("expected balance 3000, got %d", sub.NewBalance)
	}
	if sub.Withdrawal.Status != ledger.WithdrawalPending || sub.Transaction.Status != ledger.TxPending {
		t.Fatalf("expected pending records, got %s/%s", sub.Withdrawal.Status, sub.Transaction.Status)
	}
	if sub.Transaction.RelatedRequestID != sub.Withdrawal.ID || sub.Withdrawal.TransactionID != sub.Transaction.ID {
		t.Fatalf("records are not linked: %+v", sub)
	}
	if sub.Withdrawal.BankName != "First Bank" || sub.Withdrawal.AccountNumber != "0123456789" {
		t.Fatalf("bank details not captured: %+v", sub.Withdrawal)
	}

	_, err = f.svc.SubmitWithdrawal(ctx, "A1", 1000)
	if !errors.Is(err, ledger.ErrDuplicatePendingRequest) {
		t.Fatalf("expected duplicate pending error, got %v", err)
	}
	if f.balance(t, "A1") != 3000 {
		t.Fatalf("balance changed after rejected submit")
	}
}

func TestSubmitWithdrawalInsufficientBalanceCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "A2", 500)
	ctx := context.Background()

	_, err := f.svc.SubmitWithdrawal(ctx, "A2", 1000)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if f.balance(t, "A2") != 500 {
		t.Fatalf("balance changed")
	}
	ws, _ := f.svc.Withdrawals(ctx, ledger.WithdrawalFilter{AccountID: "A2"})
	txs, _ := f.svc.Transactions(ctx, "A2")
	if len(ws) != 0 || len(txs) != 0 {
		t.Fatalf("expected no records, got %d withdrawals and %d transactions", len(ws), len(txs))
	}
}

func TestSubmitWithdrawalMinimum(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 10000)
	ctx := context.Background()

	if _, err := f.svc.SubmitWithdrawal(ctx, "D1", 999); !errors.Is(err, ledger.ErrBelowMinimum) {
		t.Fatalf("expected below minimum for 999, got %v", err)
	}
	if _, err := f.svc.SubmitWithdrawal(ctx, "D1", 1000); err != nil {
		t.Fatalf("expected 1000 to succeed, got %v", err)
	}
}

func TestSubmitWithdrawalExactBalance(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 1500)
	sub, err := f.svc.SubmitWithdrawal(context.Background(), "D1", 1500)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.NewBalance != 0 {
		t.Fatalf("expected zero balance, got %d", sub.NewBalance)
	}
}

func TestSubmitWithdrawalRequiresBankProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.CreateAccount(ctx, ledger.Account{ID: "D2", Role: ledger.RoleDriver, Balance: 5000}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitWithdrawal(ctx, "D2", 2000); !errors.Is(err, ledger.ErrProfileIncomplete) {
		t.Fatalf("expected profile incomplete without profile, got %v", err)
	}

	if err := f.store.UpsertBankProfile(ctx, ledger.BankProfile{AccountID: "D2", BankName: "GTB"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitWithdrawal(ctx, "D2", 2000); !errors.Is(err, ledger.ErrProfileIncomplete) {
		t.Fatalf("expected profile incomplete with blank account number, got %v", err)
	}
	if f.balance(t, "D2") != 5000 {
		t.Fatalf("balance changed")
	}
}

func TestSubmitWithdrawalUnknownOrNonDriver(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 5000)
	ctx := context.Background()

	if _, err := f.svc.SubmitWithdrawal(ctx, "nobody", 2000); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := f.svc.SubmitWithdrawal(ctx, "S1", 2000); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found for student, got %v", err)
	}
	if _, err := f.svc.SubmitWithdrawal(ctx, "  ", 2000); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestConcurrentSubmitsAllowOnePending(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 50000)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dup       atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitWithdrawal(ctx, "D1", 2000)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ledger.ErrDuplicatePendingRequest):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 || dup.Load() != workers-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", workers-1, succeeded.Load(), dup.Load())
	}
	if f.balance(t, "D1") != 48000 {
		t.Fatalf("expected balance 48000, got %d", f.balance(t, "D1"))
	}
}

func TestBankSnapshotSurvivesProfileChange(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 5000)
	ctx := context.Background()

	sub, err := f.svc.SubmitWithdrawal(ctx, "D1", 2000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateBankProfile(ctx, "D1", "Zenith", "9999999999"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	w, err := f.svc.Withdrawal(ctx, sub.Withdrawal.ID)
	if err != nil {
		t.Fatal(err)
	}
	if w.BankName != "First Bank" || w.AccountNumber != "0123456789" {
		t.Fatalf("snapshot changed: %+v", w)
	}
}

func TestMarkWithdrawalPaid(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 5000)
	ctx := context.Background()

	sub, err := f.svc.SubmitWithdrawal(ctx, "D1", 2000)
	if err != nil {
		t.Fatal(err)
	}
	w, err := f.svc.MarkWithdrawalPaid(ctx, sub.Withdrawal.ID, " PAY-1 ")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if w.Status != ledger.WithdrawalPaid || w.PayoutReference != "PAY-1" || w.DecidedAt == nil {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}
	txs, _ := f.svc.Transactions(ctx, "D1")
	if len(txs) != 1 || txs[0].Status != ledger.TxCompleted {
		t.Fatalf("expected completed ledger line, got %+v", txs)
	}
	if f.balance(t, "D1") != 3000 {
		t.Fatalf("paying out must not change the balance again")
	}

	if _, err := f.svc.RejectWithdrawal(ctx, sub.Withdrawal.ID, "late"); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := f.svc.MarkWithdrawalPaid(ctx, sub.Withdrawal.ID, "PAY-2"); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// A settled request no longer blocks a new one.
	if _, err := f.svc.SubmitWithdrawal(ctx, "D1", 1000); err != nil {
		t.Fatalf("submit after payout: %v", err)
	}
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 5000)
	ctx := context.Background()

	sub, err := f.svc.SubmitWithdrawal(ctx, "D1", 2000)
	if err != nil {
		t.Fatal(err)
	}
	w, err := f.svc.RejectWithdrawal(ctx, sub.Withdrawal.ID, "wrong account")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if w.Status != ledger.WithdrawalRejected || w.Reason != "wrong account" {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}
	if f.balance(t, "D1") != 5000 {
		t.Fatalf("expected refund to 5000, got %d", f.balance(t, "D1"))
	}

	txs, _ := f.svc.Transactions(ctx, "D1")
	if len(txs) != 2 {
		t.Fatalf("expected request and refund lines, got %d", len(txs))
	}
	// Newest first.
	if txs[0].Type != ledger.TxWithdrawalRefund || txs[0].Status != ledger.TxCompleted {
		t.Fatalf("unexpected refund line: %+v", txs[0])
	}
	if txs[1].Type != ledger.TxWithdrawalRequest || txs[1].Status != ledger.TxFailed {
		t.Fatalf("unexpected request line: %+v", txs[1])
	}
}

func TestDecideUnknownWithdrawal(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.MarkWithdrawalPaid(context.Background(), "missing", ""); !errors.Is(err, ledger.ErrWithdrawalNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayFareMovesBalance(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 1000)
	f.driver(t, "D1", 0)
	ctx := context.Background()

	receipt, err := f.svc.PayFare(ctx, "S1", "D1", 300)
	if err != nil {
		t.Fatalf("pay fare: %v", err)
	}
	if receipt.StudentBalance != 700 || f.balance(t, "S1") != 700 || f.balance(t, "D1") != 300 {
		t.Fatalf("unexpected balances after fare")
	}
	if receipt.Fare.Type != ledger.TxRideFare || receipt.Payment.Type != ledger.TxRidePayment {
		t.Fatalf("unexpected types: %+v", receipt)
	}

	if _, err := f.svc.PayFare(ctx, "S1", "D1", 5000); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if f.balance(t, "D1") != 300 {
		t.Fatalf("driver credited despite failed fare")
	}
	if _, err := f.svc.PayFare(ctx, "D1", "S1", 100); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected role mismatch to fail, got %v", err)
	}
}

func TestDebitCredit(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 100)
	ctx := context.Background()

	if _, err := f.svc.Debit(ctx, "S1", 101); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, err := f.svc.Debit(ctx, "S1", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	b, err := f.svc.Debit(ctx, "S1", 100)
	if err != nil || b != 0 {
		t.Fatalf("debit to zero: %d %v", b, err)
	}
	b, err = f.svc.Credit(ctx, "S1", 250)
	if err != nil || b != 250 {
		t.Fatalf("credit: %d %v", b, err)
	}
}

func TestTopUp(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 0)
	tx, balance, err := f.svc.TopUp(context.Background(), "S1", 5000, "paystack-123")
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if balance != 5000 || tx.Type != ledger.TxTopUp || tx.Reference != "paystack-123" {
		t.Fatalf("unexpected top up result: %d %+v", balance, tx)
	}
	if _, _, err := f.svc.TopUp(context.Background(), "nobody", 5000, ""); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind ledger.Kind
	}{
		{ledger.ErrBelowMinimum, ledger.KindValidation},
		{ledger.ErrAccountNotFound, ledger.KindNotFound},
		{ledger.ErrDuplicatePendingRequest, ledger.KindConflict},
		{ledger.Upstream("op", errors.New("boom")), ledger.KindUpstream},
		{fmt.Errorf("wrapped: %w", ledger.ErrInsufficientBalance), ledger.KindConflict},
		{errors.New("foreign"), ledger.KindUpstream},
	}
	for _, tc := range cases {
		if got := ledger.KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.kind)
		}
	}
	if ledger.Upstream("op", ledger.ErrEmailTaken) != ledger.ErrEmailTaken {
		t.Fatalf("upstream must pass ledger errors through")
	}
}
