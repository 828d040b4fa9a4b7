package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tap2go/tap2go/internal/ledger"
)

func TestStatementReference(t *testing.T) {
	if got := ledger.StatementReference("driver-abc123xyz", 2024, 3); got != "ST-202403-123xyz" {
		t.Fatalf("unexpected reference %s", got)
	}
	if got := ledger.StatementReference("abc", 2024, 11); got != "ST-202411-abc" {
		t.Fatalf("unexpected short reference %s", got)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end, err := ledger.MonthBounds(2024, 2, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Fatalf("unexpected end %s", end)
	}
	for _, m := range []int{0, 13, -1} {
		if _, _, err := ledger.MonthBounds(2024, m, time.UTC); !errors.Is(err, ledger.ErrInvalidPeriod) {
			t.Fatalf("month %d: expected invalid period, got %v", m, err)
		}
	}
}

func TestSummariseCountsFaresOnly(t *testing.T) {
	totals := ledger.Summarise(
		[]ledger.Transaction{
			{Type: ledger.TxRideFare, Amount: 500},
			{Type: ledger.TxRideFare, Amount: 700},
			{Type: ledger.TxTopUp, Amount: 10000},
			{Type: ledger.TxWithdrawalRequest, Amount: 1000},
		},
		[]ledger.WithdrawalRequest{
			{Amount: 1000, Status: ledger.WithdrawalPaid},
			{Amount: 2500, Status: ledger.WithdrawalRejected},
		},
	)
	want := ledger.StatementTotals{TransactionCount: 4, WithdrawalCount: 2, TotalEarnings: 1200, TotalWithdrawalAmount: 3500}
	if totals != want {
		t.Fatalf("got %+v, want %+v", totals, want)
	}
}

func TestGenerateStatementIsIdempotentPerMonth(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 10000)
	f.driver(t, "driver-000042", 0)
	ctx := context.Background()

	if _, err := f.svc.PayFare(ctx, "S1", "driver-000042", 800); err != nil {
		t.Fatal(err)
	}

	first, err := f.svc.GenerateStatement(ctx, "driver-000042", 2024, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Reference != "ST-202403-000042" || first.Revision != 1 || first.Status != ledger.StatementCompleted {
		t.Fatalf("unexpected statement %+v", first)
	}
	if first.Totals.TotalEarnings != 800 || first.Totals.TransactionCount != 1 {
		t.Fatalf("unexpected totals %+v", first.Totals)
	}
	if first.Email != "driver-000042@example.com" {
		t.Fatalf("unexpected email %s", first.Email)
	}

	if _, err := f.svc.PayFare(ctx, "S1", "driver-000042", 200); err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.GenerateStatement(ctx, "driver-000042", 2024, 3)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.ID != first.ID || second.Reference != first.Reference || second.Revision != 2 {
		t.Fatalf("regeneration must replace in place: %+v vs %+v", first, second)
	}
	if second.Totals.TotalEarnings != 1000 {
		t.Fatalf("expected refreshed totals, got %+v", second.Totals)
	}
}

func TestGenerateStatementEmptyMonth(t *testing.T) {
	f := newFixture(t)
	f.driver(t, "D1", 0)
	stmt, err := f.svc.GenerateStatement(context.Background(), "D1", 2023, 12)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if stmt.Totals != (ledger.StatementTotals{}) {
		t.Fatalf("expected zero totals, got %+v", stmt.Totals)
	}
}

func TestGenerateStatementErrors(t *testing.T) {
	f := newFixture(t)
	f.student(t, "S1", 0)
	ctx := context.Background()
	if err := f.store.CreateAccount(ctx, ledger.Account{ID: "D-noprofile", Role: ledger.RoleDriver, Email: "x@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.CreateAccount(ctx, ledger.Account{ID: "D-noemail", Role: ledger.RoleDriver}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.UpsertBankProfile(ctx, ledger.BankProfile{AccountID: "D-noemail"}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		account string
		month   int
		want    error
	}{
		{"unknown", "missing", 3, ledger.ErrDriverNotFound},
		{"student", "S1", 3, ledger.ErrDriverNotFound},
		{"no profile", "D-noprofile", 3, ledger.ErrDriverNotFound},
		{"no email", "D-noemail", 3, ledger.ErrMissingContact},
		{"bad month", "D-noemail", 13, ledger.ErrInvalidPeriod},
		{"blank account", "", 3, ledger.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.GenerateStatement(ctx, tc.account, 2024, tc.month)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestStatementMonthUsesLocation(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	f := newFixture(t)
	svc := ledger.NewService(f.store, ledger.WithStatementLocation(lagos))
	f.driver(t, "D1", 0)
	ctx := context.Background()

	// 23:30 UTC on 31 March is 00:30 on 1 April in Lagos.
	if err := f.store.InsertTransaction(ctx, ledger.Transaction{
		ID: "t1", AccountID: "D1", Amount: 400, Type: ledger.TxRideFare, Status: ledger.TxCompleted,
		CreatedAt: time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}
	march, err := svc.GenerateStatement(ctx, "D1", 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	april, err := svc.GenerateStatement(ctx, "D1", 2024, 4)
	if err != nil {
		t.Fatal(err)
	}
	if march.Totals.TotalEarnings != 0 || april.Totals.TotalEarnings != 400 {
		t.Fatalf("unexpected month attribution: march=%+v april=%+v", march.Totals, april.Totals)
	}
}
