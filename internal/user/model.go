// Package user serves account profile cards and self-service profile edits.
package user

import (
	"time"

	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/ledger"
)

// PublicProfile is the subset of an account any caller may see, so a student
// can confirm who they are paying before a fare.
type PublicProfile struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         ledger.Role `json:"role"`
	LicensePlate string      `json:"licensePlate,omitempty"`
	JoinedAt     time.Time   `json:"joinedAt"`
}

func publicProfile(a ledger.Account) PublicProfile {
	p := PublicProfile{ID: a.ID, Name: a.Name, Role: a.Role, JoinedAt: a.CreatedAt}
	if a.Role == ledger.RoleDriver {
		p.LicensePlate = a.LicensePlate
	}
	return p
}

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
