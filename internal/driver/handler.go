// Package driver serves the driver-only statement, payout profile and issue
// report endpoints.
package driver

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
	h := &Handler{ledger: d.Ledger, events: d.Events, notifier: d.Notifier, metrics: d.Metrics, log: d.Log}
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

func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	err := h.events.Publish(ctx, topic, key, event)
	h.metrics.EventPublished(topic, err)
	if err != nil {
		h.log.Warn("event publish failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}
