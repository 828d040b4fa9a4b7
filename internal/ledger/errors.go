package ledger

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// Error is the error type returned by every ledger operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Op names the failing operation for upstream errors.
	Op  string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidAmount     = newError(KindValidation, "invalid_amount", "Amount must be a positive number of minor units.")
	ErrBelowMinimum      = newError(KindValidation, "below_minimum", "Amount is below the minimum withdrawal.")
	ErrInvalidPeriod     = newError(KindValidation, "invalid_period", "Year and month must describe a valid calendar month.")
	ErrInvalidInput      = newError(KindValidation, "invalid_request", "Missing or malformed fields.")
	ErrReportTooShort    = newError(KindValidation, "report_too_short", "Report text is too short.")
	ErrLinkTokenInvalid  = newError(KindValidation, "link_token_invalid", "The link token is unknown, expired or already used.")
	ErrProfileIncomplete = newError(KindValidation, "profile_incomplete", "Bank details not found. Please add your bank details in your profile.")
	ErrMissingContact    = newError(KindValidation, "missing_contact", "Driver email not found.")

	ErrAccountNotFound    = newError(KindNotFound, "account_not_found", "Account not found.")
	ErrDriverNotFound     = newError(KindNotFound, "driver_not_found", "Driver not found.")
	ErrProfileNotFound    = newError(KindNotFound, "profile_not_found", "Profile not found.")
	ErrWithdrawalNotFound = newError(KindNotFound, "withdrawal_not_found", "Withdrawal request not found.")
	ErrCredentialNotFound = newError(KindNotFound, "credential_not_found", "No credential for that email.")

	ErrInsufficientBalance     = newError(KindConflict, "insufficient_balance", "Insufficient balance.")
	ErrDuplicatePendingRequest = newError(KindConflict, "duplicate_pending_request", "You already have a pending withdrawal request.")
	ErrInvalidTransition       = newError(KindConflict, "invalid_transition", "The withdrawal request is no longer pending.")
	ErrAccountAlreadyLinked    = newError(KindConflict, "account_already_linked", "This account is already linked to another chat.")
	ErrExternalAlreadyLinked   = newError(KindConflict, "external_already_linked", "This chat is already linked to another account.")
	ErrEmailTaken              = newError(KindConflict, "email_taken", "Email already exists.")
	ErrAccountExists           = newError(KindConflict, "account_exists", "Account already exists.")

	ErrUnauthorized = newError(KindUnauthorized, "unauthorized", "Authentication required.")
	ErrForbidden    = newError(KindForbidden, "forbidden", "You do not have access to this resource.")
)

// NewError builds an error of the given kind for packages that define their own codes.
func NewError(kind Kind, code, message string) *Error {
	return newError(kind, code, message)
}

// Upstream wraps a store or provider failure with the operation that hit it.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: KindUpstream, Code: "internal_error", Message: "Internal server error.", Op: op, Err: err}
}

// KindOf returns the kind of err, treating foreign errors as upstream.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUpstream
}
