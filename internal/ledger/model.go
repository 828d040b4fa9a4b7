package ledger

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleDriver  Role = "driver"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Account holds the spendable balance of a student or driver, in minor units (kobo).
type Account struct {
	ID               string    `json:"id"`
	Role             Role      `json:"role"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Matric           string    `json:"matric,omitempty"`
	LicensePlate     string    `json:"license_plate,omitempty"`
	PhoneNumber      string    `json:"phone_number,omitempty"`
	Balance          int64     `json:"balance"`
	LinkedExternalID string    `json:"linked_external_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type BankProfile struct {
	AccountID     string    `json:"account_id"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Complete reports whether the profile can receive a payout.
func (p BankProfile) Complete() bool {
	return strings.TrimSpace(p.BankName) != "" && strings.TrimSpace(p.AccountNumber) != ""
}

type TransactionType string

const (
	TxRideFare          TransactionType = "ride_fare"
	TxRidePayment       TransactionType = "ride_payment"
	TxTopUp             TransactionType = "top_up"
	TxWithdrawalRequest TransactionType = "withdrawal_request"
	TxWithdrawalRefund  TransactionType = "withdrawal_refund"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger line. Amount is always a positive
// magnitude; Type carries the direction.
type Transaction struct {
	ID               string            `json:"id"`
	AccountID        string            `json:"account_id"`
	Amount           int64             `json:"amount"`
	Type             TransactionType   `json:"type"`
	Status           TransactionStatus `json:"status"`
	RelatedRequestID string            `json:"related_request_id,omitempty"`
	Reference        string            `json:"reference,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalPaid     WithdrawalStatus = "paid"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalPaid || s == WithdrawalRejected
}

// WithdrawalRequest snapshots the bank details at submission time.
type WithdrawalRequest struct {
	ID              string           `json:"id"`
	AccountID       string           `json:"account_id"`
	Amount          int64            `json:"amount"`
	BankName        string           `json:"bank_name"`
	AccountNumber   string           `json:"account_number"`
	Status          WithdrawalStatus `json:"status"`
	TransactionID   string           `json:"transaction_id"`
	PayoutReference string           `json:"payout_reference,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	RequestedAt     time.Time        `json:"requested_at"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
}

type StatementTotals struct {
	TransactionCount      int   `json:"transaction_count"`
	WithdrawalCount       int   `json:"withdrawal_count"`
	TotalEarnings         int64 `json:"total_earnings"`
	TotalWithdrawalAmount int64 `json:"total_withdrawal_amount"`
}

const StatementCompleted = "completed"

// Statement is unique per (AccountID, Year, Month). Revision counts regenerations.
type Statement struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Reference   string          `json:"reference"`
	Email       string          `json:"email"`
	Totals      StatementTotals `json:"totals"`
	Status      string          `json:"status"`
	Revision    int             `json:"revision"`
	GeneratedAt time.Time       `json:"generated_at"`
}

const IssueStatusNew = "new"

type IssueReport struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkToken is a one-time token for binding a chat identity to an account.
// Only the hash of the token is stored.
type LinkToken struct {
	Hash      string
	AccountID string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type Credential struct {
	AccountID    string
	Email        string
	PasswordHash string
}
