// Package wallet serves balances, ledger history, fares, top-ups and the
// withdrawal workflow over HTTP.
package wallet

import (
	"context"

	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/alerts"
	"github.com/tap2go/tap2go/internal/events"
	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/metrics"
)

type Deps struct {
	Ledger   *ledger.Service
	Events   events.Publisher
	Notifier alerts.Notifier
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

type Handler struct {
	ledger   *ledger.Service
	events   events.Publisher
	notifier alerts.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		ledger:   d.Ledger,
		events:   d.Events,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Log,
	}
	if h.events == nil {
		h.events = events.Nop{}
	}
	if h.notifier == nil {
		h.notifier = alerts.Nop{}
	}
	if h.metrics == nil {
		h.metrics = metrics.Nop()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// publish runs after commit. The ledger is already consistent, so failures
// are logged and counted rather than returned.
func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	err := h.events.Publish(ctx, topic, key, event)
	h.metrics.EventPublished(topic, err)
	if err != nil {
		h.log.Warn("event publish failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) notifyDecision(ctx context.Context, w ledger.WithdrawalRequest) {
	a, err := h.ledger.Account(ctx, w.AccountID)
	if err == nil && a.Email != "" {
		err = h.notifier.WithdrawalDecided(ctx, w, a.Email)
		h.metrics.AlertQueued(alerts.TaskWithdrawalDecided, err)
	}
	if err != nil {
		h.log.Warn("withdrawal notification failed", zap.String("withdrawal_id", w.ID), zap.Error(err))
	}
}
