// Package telegram links chat identities to accounts and answers bot updates.
package telegram

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/clock"
	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/linkcache"
	"github.com/tap2go/tap2go/internal/metrics"
)

// Telegram passes at most 64 characters through a start parameter, drawn from
// [A-Za-z0-9_-]. 32 random bytes encode to 43.
const (
	tokenBytes      = 32
	maxStartPayload = 64
	DefaultTokenTTL = 15 * time.Minute
)

type Invite struct {
	Token     string    `json:"token"`
	DeepLink  string    `json:"deepLink"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LinkerConfig struct {
	BotUsername string
	TokenTTL    time.Duration
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Linker owns the account <-> chat identity mapping.
type Linker struct {
	store    ledger.Store
	cache    linkcache.Cache
	bot      string
	ttl      time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
	log      *zap.Logger
	readRand func([]byte) (int, error)
}

func NewLinker(store ledger.Store, cache linkcache.Cache, cfg LinkerConfig) *Linker {
	l := &Linker{
		store:    store,
		cache:    cache,
		bot:      strings.TrimPrefix(cfg.BotUsername, "@"),
		ttl:      cfg.TokenTTL,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
		readRand: rand.Read,
	}
	if l.cache == nil {
		l.cache = linkcache.Nop{}
	}
	if l.ttl <= 0 {
		l.ttl = DefaultTokenTTL
	}
	if l.clock == nil {
		l.clock = clock.RealClock{}
	}
	if l.metrics == nil {
		l.metrics = metrics.Nop()
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueLinkToken creates a one-time token for accountID and the deep link that
// carries it into the bot's /start command.
func (l *Linker) IssueLinkToken(ctx context.Context, accountID string) (Invite, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return Invite{}, ledger.Upstream("issue link token", err)
	}
	buf := make([]byte, tokenBytes)
	if _, err := l.readRand(buf); err != nil {
		return Invite{}, ledger.Upstream("issue link token", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if len(token) > maxStartPayload {
		token = token[:maxStartPayload]
	}

	expires := l.clock.Now().Add(l.ttl)
	err := l.store.InsertLinkToken(ctx, ledger.LinkToken{
		Hash:      hashToken(token),
		AccountID: accountID,
		ExpiresAt: expires,
	})
	if err != nil {
		return Invite{}, ledger.Upstream("issue link token", err)
	}
	return Invite{Token: token, DeepLink: l.deepLink(token), ExpiresAt: expires}, nil
}

func (l *Linker) deepLink(token string) string {
	u := url.URL{Scheme: "https", Host: "t.me", Path: "/" + l.bot, RawQuery: "start=" + url.QueryEscape(token)}
	return u.String()
}

// ResolveAccount finds the account linked to externalID. The cache is
// consulted first; a cache failure falls through to the store.
func (l *Linker) ResolveAccount(ctx context.Context, externalID string) (string, bool, error) {
	if externalID == "" {
		return "", false, nil
	}
	id, ok, err := l.cache.Get(ctx, externalID)
	switch {
	case err != nil:
		l.metrics.CacheLookup("error")
		l.log.Warn("link cache lookup failed", zap.String("external_id", externalID), zap.Error(err))
	case ok:
		l.metrics.CacheLookup("hit")
		return id, true, nil
	default:
		l.metrics.CacheLookup("miss")
	}

	a, err := l.store.FindAccountByExternalID(ctx, externalID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ledger.Upstream("resolve account", err)
	}
	l.remember(ctx, externalID, a.ID)
	return a.ID, true, nil
}

// Link binds accountID to externalID. Each side may hold one link; linking the
// same pair again succeeds without change.
func (l *Linker) Link(ctx context.Context, accountID, externalID string) error {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(externalID) == "" {
		return ledger.ErrInvalidInput
	}
	err := l.store.WithTx(ctx, func(q ledger.Queries) error {
		return link(ctx, q, accountID, externalID)
	})
	if err != nil {
		return ledger.Upstream("link account", err)
	}
	l.remember(ctx, externalID, accountID)
	return nil
}

// LinkWithToken consumes a one-time token and links its account to externalID
// in the same transaction.
func (l *Linker) LinkWithToken(ctx context.Context, token, externalID string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxStartPayload {
		return "", ledger.ErrLinkTokenInvalid
	}
	if strings.TrimSpace(externalID) == "" {
		return "", ledger.ErrInvalidInput
	}
	now := l.clock.Now()
	var accountID string
	err := l.store.WithTx(ctx, func(q ledger.Queries) error {
		t, err := q.ConsumeLinkToken(ctx, hashToken(token), now)
		if err != nil {
			return err
		}
		accountID = t.AccountID
		return link(ctx, q, t.AccountID, externalID)
	})
	if err != nil {
		return "", ledger.Upstream("link with token", err)
	}
	l.remember(ctx, externalID, accountID)
	return accountID, nil
}

func link(ctx context.Context, q ledger.Queries, accountID, externalID string) error {
	a, err := q.LockAccount(ctx, accountID)
	if err != nil {
		return err
	}
	switch a.LinkedExternalID {
	case externalID:
		return nil
	case "":
	default:
		return ledger.ErrAccountAlreadyLinked
	}
	other, err := q.FindAccountByExternalID(ctx, externalID)
	if err == nil && other.ID != accountID {
		return ledger.ErrExternalAlreadyLinked
	}
	if err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
		return err
	}
	return q.SetLinkedExternalID(ctx, accountID, externalID)
}

// Unlink clears the account's chat link so it can be linked again.
func (l *Linker) Unlink(ctx context.Context, accountID string) error {
	var old string
	err := l.store.WithTx(ctx, func(q ledger.Queries) error {
		a, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		old = a.LinkedExternalID
		if old == "" {
			return nil
		}
		return q.SetLinkedExternalID(ctx, accountID, "")
	})
	if err != nil {
		return ledger.Upstream("unlink account", err)
	}
	if old != "" {
		if err := l.cache.Delete(ctx, old); err != nil {
			l.log.Warn("link cache delete failed", zap.String("external_id", old), zap.Error(err))
		}
	}
	return nil
}

func (l *Linker) remember(ctx context.Context, externalID, accountID string) {
	if err := l.cache.Set(ctx, externalID, accountID); err != nil {
		l.log.Warn("link cache set failed", zap.String("external_id", externalID), zap.Error(err))
	}
}
