package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tap2go/tap2go/internal/ledger"
)

var errNegativeBalance = errors.New("memory: balance would be negative")

type statementKey struct {
	accountID string
	year      int
	month     int
}

// state is one consistent snapshot of every collection. It implements
// ledger.Queries without locking; Store serialises access to it.
type state struct {
	accounts     map[string]ledger.Account
	profiles     map[string]ledger.BankProfile
	transactions []ledger.Transaction
	withdrawals  map[string]ledger.WithdrawalRequest
	statements   map[statementKey]ledger.Statement
	issues       []ledger.IssueReport
	tokens       map[string]ledger.LinkToken
	credentials  map[string]ledger.Credential
}

func newState() *state {
	return &state{
		accounts:    make(map[string]ledger.Account),
		profiles:    make(map[string]ledger.BankProfile),
		withdrawals: make(map[string]ledger.WithdrawalRequest),
		statements:  make(map[statementKey]ledger.Statement),
		tokens:      make(map[string]ledger.LinkToken),
		credentials: make(map[string]ledger.Credential),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[string]ledger.Account, len(s.accounts)),
		profiles:     make(map[string]ledger.BankProfile, len(s.profiles)),
		transactions: append([]ledger.Transaction(nil), s.transactions...),
		withdrawals:  make(map[string]ledger.WithdrawalRequest, len(s.withdrawals)),
		statements:   make(map[statementKey]ledger.Statement, len(s.statements)),
		issues:       append([]ledger.IssueReport(nil), s.issues...),
		tokens:       make(map[string]ledger.LinkToken, len(s.tokens)),
		credentials:  make(map[string]ledger.Credential, len(s.credentials)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.statements {
		c.statements[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.credentials {
		c.credentials[k] = v
	}
	return c
}

func (s *state) CreateAccount(_ context.Context, a ledger.Account) error {
	if _, ok := s.accounts[a.ID]; ok {
		return ledger.ErrAccountExists
	}
	if a.LinkedExternalID != "" {
		if _, err := s.FindAccountByExternalID(context.Background(), a.LinkedExternalID); err == nil {
			return ledger.ErrExternalAlreadyLinked
		}
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *state) GetAccount(_ context.Context, id string) (ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (s *state) LockAccount(ctx context.Context, id string) (ledger.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *state) ListAccounts(_ context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range s.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *state) SetBalance(_ context.Context, id string, balance int64) error {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if balance < 0 {
		return errNegativeBalance
	}
	a.Balance = balance
	s.accounts[id] = a
	return nil
}

func (s *state) UpdateAccountDetails(_ context.Context, a ledger.Account) error {
	cur, ok := s.accounts[a.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	cur.Name = a.Name
	cur.Matric = a.Matric
	cur.LicensePlate = a.LicensePlate
	cur.PhoneNumber = a.PhoneNumber
	s.accounts[a.ID] = cur
	return nil
}

func (s *state) SetRole(_ context.Context, id string, role ledger.Role) error {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Role = role
	s.accounts[id] = a
	return nil
}

func (s *state) FindAccountByExternalID(_ context.Context, externalID string) (ledger.Account, error) {
	if externalID == "" {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	for _, a := range s.accounts {
		if a.LinkedExternalID == externalID {
			return a, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func (s *state) SetLinkedExternalID(ctx context.Context, accountID, externalID string) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if externalID != "" {
		if other, err := s.FindAccountByExternalID(ctx, externalID); err == nil && other.ID != accountID {
			return ledger.ErrExternalAlreadyLinked
		}
	}
	a.LinkedExternalID = externalID
	s.accounts[accountID] = a
	return nil
}

func (s *state) GetBankProfile(_ context.Context, accountID string) (ledger.BankProfile, error) {
	p, ok := s.profiles[accountID]
	if !ok {
		return ledger.BankProfile{}, ledger.ErrProfileNotFound
	}
	return p, nil
}

func (s *state) UpsertBankProfile(_ context.Context, p ledger.BankProfile) error {
	if _, ok := s.accounts[p.AccountID]; !ok {
		return ledger.ErrAccountNotFound
	}
	s.profiles[p.AccountID] = p
	return nil
}

func (s *state) InsertTransaction(_ context.Context, t ledger.Transaction) error {
	for _, existing := range s.transactions {
		if existing.ID == t.ID {
			return fmt.Errorf("memory: duplicate transaction id %s", t.ID)
		}
	}
	s.transactions = append(s.transactions, t)
	return nil
}

func (s *state) SetTransactionStatus(_ context.Context, id string, status ledger.TransactionStatus) error {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("memory: transaction %s not found", id)
}

func (s *state) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range s.transactions {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *state) InsertWithdrawal(_ context.Context, w ledger.WithdrawalRequest) error {
	if _, ok := s.withdrawals[w.ID]; ok {
		return fmt.Errorf("memory: duplicate withdrawal id %s", w.ID)
	}
	if w.Status == ledger.WithdrawalPending {
		for _, existing := range s.withdrawals {
			if existing.AccountID == w.AccountID && existing.Status == ledger.WithdrawalPending {
				return ledger.ErrDuplicatePendingRequest
			}
		}
	}
	s.withdrawals[w.ID] = w
	return nil
}

func (s *state) GetWithdrawal(_ context.Context, id string) (ledger.WithdrawalRequest, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return ledger.WithdrawalRequest{}, ledger.ErrWithdrawalNotFound
	}
	return w, nil
}

func (s *state) LockWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	return s.GetWithdrawal(ctx, id)
}

func (s *state) ListWithdrawals(_ context.Context, f ledger.WithdrawalFilter) ([]ledger.WithdrawalRequest, error) {
	var out []ledger.WithdrawalRequest
	for _, w := range s.withdrawals {
		if f.Match(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (s *state) UpdateWithdrawal(_ context.Context, w ledger.WithdrawalRequest) error {
	if _, ok := s.withdrawals[w.ID]; !ok {
		return ledger.ErrWithdrawalNotFound
	}
	s.withdrawals[w.ID] = w
	return nil
}

func (s *state) UpsertStatement(_ context.Context, st ledger.Statement) (ledger.Statement, error) {
	key := statementKey{accountID: st.AccountID, year: st.Year, month: st.Month}
	if existing, ok := s.statements[key]; ok {
		st.ID = existing.ID
		st.Revision = existing.Revision + 1
	} else {
		st.Revision = 1
	}
	s.statements[key] = st
	return st, nil
}

func (s *state) InsertIssueReport(_ context.Context, r ledger.IssueReport) error {
	s.issues = append(s.issues, r)
	return nil
}

func (s *state) InsertLinkToken(_ context.Context, t ledger.LinkToken) error {
	if _, ok := s.tokens[t.Hash]; ok {
		return fmt.Errorf("memory: duplicate link token")
	}
	s.tokens[t.Hash] = t
	return nil
}

func (s *state) ConsumeLinkToken(_ context.Context, hash string, now time.Time) (ledger.LinkToken, error) {
	t, ok := s.tokens[hash]
	if !ok || t.UsedAt != nil || now.After(t.ExpiresAt) {
		return ledger.LinkToken{}, ledger.ErrLinkTokenInvalid
	}
	t.UsedAt = &now
	s.tokens[hash] = t
	return t, nil
}

func (s *state) CreateCredential(_ context.Context, c ledger.Credential) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if _, ok := s.credentials[c.Email]; ok {
		return ledger.ErrEmailTaken
	}
	s.credentials[c.Email] = c
	return nil
}

func (s *state) DeleteCredential(_ context.Context, accountID string) error {
	for email, c := range s.credentials {
		if c.AccountID == accountID {
			delete(s.credentials, email)
		}
	}
	return nil
}

func (s *state) GetCredentialByEmail(_ context.Context, email string) (ledger.Credential, error) {
	c, ok := s.credentials[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return ledger.Credential{}, ledger.ErrCredentialNotFound
	}
	return c, nil
}

var _ ledger.Queries = (*state)(nil)
