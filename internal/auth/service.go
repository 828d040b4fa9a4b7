// Package auth registers accounts, logs them in and issues session tokens.
package auth

import (
	"context"
	"strings"

	"github.com/tap2go/tap2go/internal/clock"
	"github.com/tap2go/tap2go/internal/ledger"
)

var ErrInvalidCredentials = ledger.NewError(ledger.KindUnauthorized, "invalid_credentials", "Invalid email or password.")

type Service struct {
	store           ledger.Store
	provider        Provider
	tokens          *TokenIssuer
	clock           clock.Clock
	bootstrapSecret string
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithBootstrapSecret enables BootstrapAdmin. An empty secret leaves it disabled.
func WithBootstrapSecret(secret string) Option {
	return func(s *Service) { s.bootstrapSecret = secret }
}

func NewService(store ledger.Store, provider Provider, tokens *TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		tokens:   tokens,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Me returns the account behind a session.
func (s *Service) Me(ctx context.Context, accountID string) (ledger.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, ledger.Upstream("load account", err)
	}
	return a, nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
