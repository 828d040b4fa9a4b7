package ledger

import (
	"context"
	"time"
)

// Store is the Ledger Store: a transactional record store. Reads made directly
// on the Store see committed data; WithTx runs fn atomically and rolls back
// every write when fn returns an error.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

// Queries is the record-level surface shared by the store and its transactions.
// Lookups of missing records return the matching ErrXNotFound sentinel.
type Queries interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	// LockAccount reads an account and holds it until the transaction ends.
	LockAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context, f AccountFilter) ([]Account, error)
	SetBalance(ctx context.Context, id string, balance int64) error
	SetRole(ctx context.Context, id string, role Role) error
	// UpdateAccountDetails writes the descriptive fields of a. Role, balance
	// and link are left alone.
	UpdateAccountDetails(ctx context.Context, a Account) error
	FindAccountByExternalID(ctx context.Context, externalID string) (Account, error)
	SetLinkedExternalID(ctx context.Context, accountID, externalID string) error

	GetBankProfile(ctx context.Context, accountID string) (BankProfile, error)
	UpsertBankProfile(ctx context.Context, p BankProfile) error

	InsertTransaction(ctx context.Context, t Transaction) error
	SetTransactionStatus(ctx context.Context, id string, status TransactionStatus) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	InsertWithdrawal(ctx context.Context, w WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	LockWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, f WithdrawalFilter) ([]WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w WithdrawalRequest) error

	// UpsertStatement inserts or replaces the statement for (AccountID, Year, Month)
	// and returns the stored row. The stored ID and Revision are assigned by the store.
	UpsertStatement(ctx context.Context, s Statement) (Statement, error)

	InsertIssueReport(ctx context.Context, r IssueReport) error

	InsertLinkToken(ctx context.Context, t LinkToken) error
	// ConsumeLinkToken marks an unused, unexpired token as used and returns it.
	ConsumeLinkToken(ctx context.Context, hash string, now time.Time) (LinkToken, error)

	CreateCredential(ctx context.Context, c Credential) error
	DeleteCredential(ctx context.Context, accountID string) error
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
}

type AccountFilter struct {
	Role Role
}

// TransactionFilter selects an account's transactions. Zero times leave the
// range open; set bounds are inclusive.
type TransactionFilter struct {
	AccountID string
	From      time.Time
	To        time.Time
}

func (f TransactionFilter) Match(t Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	return inRange(t.CreatedAt, f.From, f.To)
}

type WithdrawalFilter struct {
	AccountID string
	Status    WithdrawalStatus
	From      time.Time
	To        time.Time
}

func (f WithdrawalFilter) Match(w WithdrawalRequest) bool {
	if f.AccountID != "" && w.AccountID != f.AccountID {
		return false
	}
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	return inRange(w.RequestedAt, f.From, f.To)
}

func inRange(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}
