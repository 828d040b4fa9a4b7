package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Connect opens a pool against dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates every table the ledger store needs. Each step is
// idempotent so it runs on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"accounts", ensureAccountsTable},
		{"bank_profiles", ensureBankProfilesTable},
		{"transactions", ensureTransactionsTable},
		{"withdrawal_requests", ensureWithdrawalsTable},
		{"statements", ensureStatementsTable},
		{"issue_reports", ensureIssueReportsTable},
		{"link_tokens", ensureLinkTokensTable},
		{"credentials", ensureCredentialsTable},
	}
	for _, step := range steps {
		if err := step.fn(ctx, pool); err != nil {
			return fmt.Errorf("ensure %s: %w", step.name, err)
		}
		log.Debug("schema ensured", zap.String("table", step.name))
	}
	return nil
}

func ensureAccountsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL CHECK (role IN ('student','driver','admin')),
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			matric TEXT NOT NULL DEFAULT '',
			license_plate TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			linked_external_id TEXT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role);
	`)
	return err
}

func ensureBankProfilesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bank_profiles (
			account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			bank_name TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func ensureTransactionsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL CHECK (amount > 0),
			type TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','completed','failed')),
			related_request_id TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_id, created_at);
	`)
	return err
}

func ensureWithdrawalsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL CHECK (amount > 0),
			bank_name TEXT NOT NULL,
			account_number TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','paid','rejected')),
			transaction_id TEXT NOT NULL,
			payout_reference TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			requested_at TIMESTAMPTZ NOT NULL,
			decided_at TIMESTAMPTZ NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_withdrawal_one_pending
			ON withdrawal_requests(account_id) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_withdrawal_status_requested ON withdrawal_requests(status, requested_at);
	`)
	return err
}

func ensureStatementsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS statements (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			reference TEXT NOT NULL,
			email TEXT NOT NULL,
			transaction_count INTEGER NOT NULL,
			withdrawal_count INTEGER NOT NULL,
			total_earnings BIGINT NOT NULL,
			total_withdrawal_amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			generated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (account_id, year, month)
		);
	`)
	return err
}

func ensureIssueReportsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS issue_reports (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func ensureLinkTokensTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS link_tokens (
			hash TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			used_at TIMESTAMPTZ NULL
		);
	`)
	return err
}

func ensureCredentialsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			account_id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		);
	`)
	return err
}
