// Package admin serves the operator overview endpoints.
package admin

import (
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/ledger"
)

type Handler struct {
	ledger *ledger.Service
	log    *zap.Logger
}

func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ledger: svc, log: log}
}
