package driver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/alerts"
	"github.com/tap2go/tap2go/internal/events"
	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type StatementRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Year      int    `json:"year" validate:"required"`
	Month     int    `json:"month" validate:"required"`
}

type StatementResponse struct {
	Message   string                 `json:"message"`
	Reference string                 `json:"reference"`
	Revision  int                    `json:"revision"`
	Totals    ledger.StatementTotals `json:"totals"`
}

// GenerateStatement builds the monthly statement, stores it and queues the
// email to the driver.
func (h *Handler) GenerateStatement(c echo.Context) error {
	req := new(StatementRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	if req.AccountID != httpx.UserID(c) {
		return httpx.WriteError(c, h.log, ledger.ErrForbidden)
	}

	ctx := c.Request().Context()
	stmt, err := h.ledger.GenerateStatement(ctx, req.AccountID, req.Year, req.Month)
	h.metrics.Statement(err)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}

	name := ""
	if a, err := h.ledger.Account(ctx, stmt.AccountID); err == nil {
		name = a.Name
	}
	err = h.notifier.StatementReady(ctx, stmt, name)
	h.metrics.AlertQueued(alerts.TaskStatementReady, err)
	if err != nil {
		h.log.Warn("statement email not queued", zap.String("reference", stmt.Reference), zap.Error(err))
	}
	h.publish(ctx, events.TopicStatementGenerated, stmt.AccountID, events.StatementGenerated{
		StatementID: stmt.ID,
		AccountID:   stmt.AccountID,
		Reference:   stmt.Reference,
		Year:        stmt.Year,
		Month:       stmt.Month,
		Revision:    stmt.Revision,
		GeneratedAt: stmt.GeneratedAt,
	})

	return c.JSON(http.StatusOK, StatementResponse{
		Message:   fmt.Sprintf("Monthly statement for %d/%d has been generated and sent to %s", stmt.Month, stmt.Year, stmt.Email),
		Reference: stmt.Reference,
		Revision:  stmt.Revision,
		Totals:    stmt.Totals,
	})
}
