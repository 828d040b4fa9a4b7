package auth

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tap2go/tap2go/internal/ledger"
)

const minPasswordLength = 6

var (
	ErrEmailAlreadyExists = ledger.NewError(ledger.KindConflict, "auth/email-already-exists", "Email already exists.")
	ErrInvalidEmail       = ledger.NewError(ledger.KindValidation, "auth/invalid-email", "Invalid email format.")
	ErrInvalidPassword    = ledger.NewError(ledger.KindValidation, "auth/invalid-password", "Password must be at least 6 characters long.")
)

type NewUser struct {
	Email       string
	Password    string
	DisplayName string
}

type UserRecord struct {
	UID string
}

// Provider owns credentials. Accounts are created separately with the
// returned UID as their id.
type Provider interface {
	CreateUser(ctx context.Context, u NewUser) (UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	// Verify returns the UID for a matching email and password.
	Verify(ctx context.Context, email, password string) (string, error)
}

// CredentialStore is the part of the ledger store the local provider needs.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c ledger.Credential) error
	DeleteCredential(ctx context.Context, accountID string) error
	GetCredentialByEmail(ctx context.Context, email string) (ledger.Credential, error)
}

// LocalProvider keeps bcrypt hashes next to the ledger data.
type LocalProvider struct {
	store    CredentialStore
	validate *validator.Validate
	newID    func() string
	cost     int
}

func NewLocalProvider(store CredentialStore) *LocalProvider {
	return &LocalProvider{
		store:    store,
		validate: validator.New(),
		newID:    uuid.NewString,
		cost:     bcrypt.DefaultCost,
	}
}

func (p *LocalProvider) CreateUser(ctx context.Context, u NewUser) (UserRecord, error) {
	email := normalizeEmail(u.Email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return UserRecord{}, ErrInvalidEmail
	}
	if utf8.RuneCountInString(u.Password) < minPasswordLength {
		return UserRecord{}, ErrInvalidPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), p.cost)
	if err != nil {
		return UserRecord{}, ledger.Upstream("hash password", err)
	}
	uid := p.newID()
	err = p.store.CreateCredential(ctx, ledger.Credential{AccountID: uid, Email: email, PasswordHash: string(hashed)})
	if errors.Is(err, ledger.ErrEmailTaken) {
		return UserRecord{}, ErrEmailAlreadyExists
	}
	if err != nil {
		return UserRecord{}, ledger.Upstream("create credential", err)
	}
	return UserRecord{UID: uid}, nil
}

func (p *LocalProvider) DeleteUser(ctx context.Context, uid string) error {
	return ledger.Upstream("delete credential", p.store.DeleteCredential(ctx, uid))
}

func (p *LocalProvider) Verify(ctx context.Context, email, password string) (string, error) {
	cred, err := p.store.GetCredentialByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ledger.ErrCredentialNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", ledger.Upstream("load credential", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.AccountID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
