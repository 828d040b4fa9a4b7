package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tap2go/tap2go/internal/ledger"
)

// Store is an in-process ledger.Store. Transactions run one at a time against a
// private copy of the data that replaces the live copy only when fn succeeds.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(q ledger.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Issues returns every stored issue report in insertion order.
func (s *Store) Issues() []ledger.IssueReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.IssueReport(nil), s.st.issues...)
}

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateAccount(ctx, a)
}

func (s *Store) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetAccount(ctx, id)
}

func (s *Store) LockAccount(ctx context.Context, id string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.LockAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListAccounts(ctx, f)
}

func (s *Store) SetBalance(ctx context.Context, id string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetBalance(ctx, id, balance)
}

func (s *Store) SetRole(ctx context.Context, id string, role ledger.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetRole(ctx, id, role)
}

func (s *Store) UpdateAccountDetails(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateAccountDetails(ctx, a)
}

func (s *Store) FindAccountByExternalID(ctx context.Context, externalID string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.FindAccountByExternalID(ctx, externalID)
}

func (s *Store) SetLinkedExternalID(ctx context.Context, accountID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetLinkedExternalID(ctx, accountID, externalID)
}

func (s *Store) GetBankProfile(ctx context.Context, accountID string) (ledger.BankProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetBankProfile(ctx, accountID)
}

func (s *Store) UpsertBankProfile(ctx context.Context, p ledger.BankProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertBankProfile(ctx, p)
}

func (s *Store) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertTransaction(ctx, t)
}

func (s *Store) SetTransactionStatus(ctx context.Context, id string, status ledger.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetTransactionStatus(ctx, id, status)
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListTransactions(ctx, f)
}

func (s *Store) InsertWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertWithdrawal(ctx, w)
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetWithdrawal(ctx, id)
}

func (s *Store) LockWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.LockWithdrawal(ctx, id)
}

func (s *Store) ListWithdrawals(ctx context.Context, f ledger.WithdrawalFilter) ([]ledger.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListWithdrawals(ctx, f)
}

func (s *Store) UpdateWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateWithdrawal(ctx, w)
}

func (s *Store) UpsertStatement(ctx context.Context, st ledger.Statement) (ledger.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertStatement(ctx, st)
}

func (s *Store) InsertIssueReport(ctx context.Context, r ledger.IssueReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertIssueReport(ctx, r)
}

func (s *Store) InsertLinkToken(ctx context.Context, t ledger.LinkToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertLinkToken(ctx, t)
}

func (s *Store) ConsumeLinkToken(ctx context.Context, hash string, now time.Time) (ledger.LinkToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ConsumeLinkToken(ctx, hash, now)
}

func (s *Store) CreateCredential(ctx context.Context, c ledger.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateCredential(ctx, c)
}

func (s *Store) DeleteCredential(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteCredential(ctx, accountID)
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (ledger.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetCredentialByEmail(ctx, email)
}

var _ ledger.Store = (*Store)(nil)
