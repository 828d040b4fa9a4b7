package driver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/alerts"
	"github.com/tap2go/tap2go/internal/httpx"
)

type IssueRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ReportIssue stores the report and forwards it to the admin mailbox.
func (h *Handler) ReportIssue(c echo.Context) error {
	req := new(IssueRequest)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	ctx := c.Request().Context()
	report, err := h.ledger.ReportIssue(ctx, httpx.UserID(c), req.Text)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}

	reporter, err := h.ledger.Account(ctx, report.AccountID)
	if err == nil {
		err = h.notifier.IssueReported(ctx, report, reporter)
		h.metrics.AlertQueued(alerts.TaskIssueReported, err)
	}
	if err != nil {
		h.log.Warn("issue report alert not queued", zap.String("report_id", report.ID), zap.Error(err))
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Issue reported successfully", "id": report.ID})
}
