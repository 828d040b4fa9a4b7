package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tap2go/tap2go/internal/ledger"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the Postgres ledger.Store. Tables are created by db.EnsureSchema.
type Store struct {
	*queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: &queries{db: pool}, pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(q ledger.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type queries struct {
	db querier
}

const accountColumns = `id, role, email, name, matric, license_plate, phone_number, balance,
	COALESCE(linked_external_id, ''), created_at`

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a    ledger.Account
		role string
	)
	err := row.Scan(&a.ID, &role, &a.Email, &a.Name, &a.Matric, &a.LicensePlate, &a.PhoneNumber,
		&a.Balance, &a.LinkedExternalID, &a.CreatedAt)
	a.Role = ledger.Role(role)
	return a, err
}

func (q *queries) CreateAccount(ctx context.Context, a ledger.Account) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, role, email, name, matric, license_plate, phone_number, balance, linked_external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`, a.ID, string(a.Role), a.Email, a.Name, a.Matric, a.LicensePlate, a.PhoneNumber, a.Balance, a.LinkedExternalID, createdAt)
	return mapError(err)
}

func (q *queries) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	return a, notFound(err, ledger.ErrAccountNotFound)
}

func (q *queries) LockAccount(ctx context.Context, id string) (ledger.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	return a, notFound(err, ledger.ErrAccountNotFound)
}

func (q *queries) ListAccounts(ctx context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at, id
	`, string(f.Role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *queries) SetBalance(ctx context.Context, id string, balance int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (q *queries) SetRole(ctx context.Context, id string, role ledger.Role) error {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (q *queries) UpdateAccountDetails(ctx context.Context, a ledger.Account) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE accounts
		SET name = $2, matric = $3, license_plate = $4, phone_number = $5
		WHERE id = $1`,
		a.ID, a.Name, a.Matric, a.LicensePlate, a.PhoneNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (q *queries) FindAccountByExternalID(ctx context.Context, externalID string) (ledger.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE linked_external_id = $1`, externalID))
	return a, notFound(err, ledger.ErrAccountNotFound)
}

func (q *queries) SetLinkedExternalID(ctx context.Context, accountID, externalID string) error {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET linked_external_id = NULLIF($2, '') WHERE id = $1`, accountID, externalID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (q *queries) GetBankProfile(ctx context.Context, accountID string) (ledger.BankProfile, error) {
	var p ledger.BankProfile
	err := q.db.QueryRow(ctx, `
		SELECT account_id, bank_name, account_number, updated_at FROM bank_profiles WHERE account_id = $1
	`, accountID).Scan(&p.AccountID, &p.BankName, &p.AccountNumber, &p.UpdatedAt)
	return p, notFound(err, ledger.ErrProfileNotFound)
}

func (q *queries) UpsertBankProfile(ctx context.Context, p ledger.BankProfile) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO bank_profiles (account_id, bank_name, account_number, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET bank_name = EXCLUDED.bank_name, account_number = EXCLUDED.account_number, updated_at = EXCLUDED.updated_at
	`, p.AccountID, p.BankName, p.AccountNumber, updatedAt)
	return mapError(err)
}

func (q *queries) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO transactions (id, account_id, amount, type, status, related_request_id, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.AccountID, t.Amount, string(t.Type), string(t.Status), t.RelatedRequestID, t.Reference, t.CreatedAt)
	return mapError(err)
}

func (q *queries) SetTransactionStatus(ctx context.Context, id string, status ledger.TransactionStatus) error {
	tag, err := q.db.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

func (q *queries) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, account_id, amount, type, status, related_request_id, reference, created_at
		FROM transactions
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at, id
	`, f.AccountID, nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var (
			t           ledger.Transaction
			typ, status string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &typ, &status, &t.RelatedRequestID, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = ledger.TransactionType(typ)
		t.Status = ledger.TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

const withdrawalColumns = `id, account_id, amount, bank_name, account_number, status, transaction_id,
	payout_reference, reason, requested_at, decided_at`

func scanWithdrawal(row scanner) (ledger.WithdrawalRequest, error) {
	var (
		w      ledger.WithdrawalRequest
		status string
	)
	err := row.Scan(&w.ID, &w.AccountID, &w.Amount, &w.BankName, &w.AccountNumber, &status, &w.TransactionID,
		&w.PayoutReference, &w.Reason, &w.RequestedAt, &w.DecidedAt)
	w.Status = ledger.WithdrawalStatus(status)
	return w, err
}

func (q *queries) InsertWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO withdrawal_requests (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, w.ID, w.AccountID, w.Amount, w.BankName, w.AccountNumber, string(w.Status), w.TransactionID,
		w.PayoutReference, w.Reason, w.RequestedAt, w.DecidedAt)
	return mapError(err)
}

func (q *queries) GetWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	return w, notFound(err, ledger.ErrWithdrawalNotFound)
}

func (q *queries) LockWithdrawal(ctx context.Context, id string) (ledger.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id))
	return w, notFound(err, ledger.ErrWithdrawalNotFound)
}

func (q *queries) ListWithdrawals(ctx context.Context, f ledger.WithdrawalFilter) ([]ledger.WithdrawalRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR requested_at >= $3)
		  AND ($4::timestamptz IS NULL OR requested_at <= $4)
		ORDER BY requested_at, id
	`, f.AccountID, string(f.Status), nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (q *queries) UpdateWithdrawal(ctx context.Context, w ledger.WithdrawalRequest) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, payout_reference = $3, reason = $4, decided_at = $5
		WHERE id = $1
	`, w.ID, string(w.Status), w.PayoutReference, w.Reason, w.DecidedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrWithdrawalNotFound
	}
	return nil
}

func (q *queries) UpsertStatement(ctx context.Context, st ledger.Statement) (ledger.Statement, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO statements (id, account_id, year, month, reference, email, transaction_count, withdrawal_count,
			total_earnings, total_withdrawal_amount, status, revision, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12)
		ON CONFLICT (account_id, year, month) DO UPDATE SET
			reference = EXCLUDED.reference,
			email = EXCLUDED.email,
			transaction_count = EXCLUDED.transaction_count,
			withdrawal_count = EXCLUDED.withdrawal_count,
			total_earnings = EXCLUDED.total_earnings,
			total_withdrawal_amount = EXCLUDED.total_withdrawal_amount,
			status = EXCLUDED.status,
			generated_at = EXCLUDED.generated_at,
			revision = statements.revision + 1
		RETURNING id, revision
	`, st.ID, st.AccountID, st.Year, st.Month, st.Reference, st.Email,
		st.Totals.TransactionCount, st.Totals.WithdrawalCount, st.Totals.TotalEarnings, st.Totals.TotalWithdrawalAmount,
		st.Status, st.GeneratedAt).Scan(&st.ID, &st.Revision)
	if err != nil {
		return ledger.Statement{}, mapError(err)
	}
	return st, nil
}

func (q *queries) InsertIssueReport(ctx context.Context, r ledger.IssueReport) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO issue_reports (id, account_id, text, status, created_at) VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.AccountID, r.Text, r.Status, r.CreatedAt)
	return mapError(err)
}

func (q *queries) InsertLinkToken(ctx context.Context, t ledger.LinkToken) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO link_tokens (hash, account_id, expires_at, used_at) VALUES ($1, $2, $3, $4)
	`, t.Hash, t.AccountID, t.ExpiresAt, t.UsedAt)
	return mapError(err)
}

func (q *queries) ConsumeLinkToken(ctx context.Context, hash string, now time.Time) (ledger.LinkToken, error) {
	t := ledger.LinkToken{Hash: hash}
	err := q.db.QueryRow(ctx, `
		UPDATE link_tokens SET used_at = $2
		WHERE hash = $1 AND used_at IS NULL AND expires_at >= $2
		RETURNING account_id, expires_at, used_at
	`, hash, now).Scan(&t.AccountID, &t.ExpiresAt, &t.UsedAt)
	return t, notFound(err, ledger.ErrLinkTokenInvalid)
}

func (q *queries) CreateCredential(ctx context.Context, c ledger.Credential) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO credentials (account_id, email, password_hash) VALUES ($1, lower(trim($2)), $3)
	`, c.AccountID, c.Email, c.PasswordHash)
	return mapError(err)
}

func (q *queries) DeleteCredential(ctx context.Context, accountID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM credentials WHERE account_id = $1`, accountID)
	return err
}

func (q *queries) GetCredentialByEmail(ctx context.Context, email string) (ledger.Credential, error) {
	var c ledger.Credential
	err := q.db.QueryRow(ctx, `
		SELECT account_id, email, password_hash FROM credentials WHERE email = lower(trim($1))
	`, email).Scan(&c.AccountID, &c.Email, &c.PasswordHash)
	return c, notFound(err, ledger.ErrCredentialNotFound)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

// mapError turns constraint violations into ledger errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "uq_withdrawal_one_pending":
			return ledger.ErrDuplicatePendingRequest
		case "accounts_linked_external_id_key":
			return ledger.ErrExternalAlreadyLinked
		case "credentials_email_key":
			return ledger.ErrEmailTaken
		case "accounts_pkey":
			return ledger.ErrAccountExists
		}
	case "23503":
		return ledger.ErrAccountNotFound
	}
	return err
}

var _ ledger.Store = (*Store)(nil)
