package linkcache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("link cache unavailable")

// Guarded wraps a Cache with a circuit breaker and a per-call timeout.
type Guarded struct {
	inner   Cache
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewGuarded(inner Cache, timeout time.Duration, log *zap.Logger) *Guarded {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "linkcache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Guarded{inner: inner, cb: cb, timeout: timeout}
}

type lookup struct {
	accountID string
	ok        bool
}

func (g *Guarded) Get(ctx context.Context, externalID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	res, err := g.cb.Execute(func() (interface{}, error) {
		id, ok, err := g.inner.Get(ctx, externalID)
		return lookup{accountID: id, ok: ok}, err
	})
	if err != nil {
		return "", false, g.mapErr(err)
	}
	l := res.(lookup)
	return l.accountID, l.ok, nil
}

func (g *Guarded) Set(ctx context.Context, externalID, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.inner.Set(ctx, externalID, accountID)
	})
	return g.mapErr(err)
}

func (g *Guarded) Delete(ctx context.Context, externalID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.inner.Delete(ctx, externalID)
	})
	return g.mapErr(err)
}

func (g *Guarded) mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}
