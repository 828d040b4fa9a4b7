package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/money"
)

// Notifier schedules outbound emails. Calls return once the task is queued.
type Notifier interface {
	StatementReady(ctx context.Context, stmt ledger.Statement, driverName string) error
	IssueReported(ctx context.Context, report ledger.IssueReport, reporter ledger.Account) error
	WithdrawalDecided(ctx context.Context, w ledger.WithdrawalRequest, email string) error
}

// Enqueuer is the subset of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Queue struct {
	client     Enqueuer
	adminEmail string
	now        func() time.Time
}

func NewQueue(client Enqueuer, adminEmail string) *Queue {
	return &Queue{client: client, adminEmail: adminEmail, now: time.Now}
}

func (q *Queue) enqueue(ctx context.Context, taskType, queue string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, b, asynq.MaxRetry(5), asynq.Timeout(time.Minute))
	_, err = q.client.EnqueueContext(ctx, task, asynq.Queue(queue))
	return err
}

// StatementReady emails the driver their monthly statement summary.
func (q *Queue) StatementReady(ctx context.Context, stmt ledger.Statement, driverName string) error {
	t := stmt.Totals
	body := fmt.Sprintf("Hi %s,\n\nYour statement for %02d/%d is ready.\n\nReference: %s\nTransactions: %d\nTotal earnings: %s\nWithdrawals: %d (%s)\n\nThe Tap2Go team",
		driverName, stmt.Month, stmt.Year, stmt.Reference,
		t.TransactionCount, money.WithSymbol(t.TotalEarnings),
		t.WithdrawalCount, money.WithSymbol(t.TotalWithdrawalAmount),
	)
	return q.enqueue(ctx, TaskStatementReady, QueueEmails, StatementReadyPayload{
		StatementID: stmt.ID,
		AccountID:   stmt.AccountID,
		Reference:   stmt.Reference,
		Envelope: EmailEnvelope{
			To:      stmt.Email,
			Subject: fmt.Sprintf("Your Tap2Go statement %s", stmt.Reference),
			Body:    body,
		},
		SentAt: q.now(),
	})
}

// IssueReported forwards a new issue report to the admin mailbox.
func (q *Queue) IssueReported(ctx context.Context, report ledger.IssueReport, reporter ledger.Account) error {
	body := fmt.Sprintf("New issue report %s from %s (%s, %s):\n\n%s",
		report.ID, reporter.Name, reporter.Email, reporter.ID, report.Text)
	return q.enqueue(ctx, TaskIssueReported, QueueAlerts, IssueReportedPayload{
		ReportID:  report.ID,
		AccountID: report.AccountID,
		Envelope:  EmailEnvelope{To: q.adminEmail, Subject: "New Issue Report", Body: body},
		SentAt:    q.now(),
	})
}

// WithdrawalDecided tells the driver that a request was paid or rejected.
func (q *Queue) WithdrawalDecided(ctx context.Context, w ledger.WithdrawalRequest, email string) error {
	var subject, body string
	switch w.Status {
	case ledger.WithdrawalPaid:
		subject = "Your withdrawal has been paid"
		body = fmt.Sprintf("Your withdrawal of %s to %s (%s) has been paid.", money.WithSymbol(w.Amount), w.BankName, w.AccountNumber)
		if w.PayoutReference != "" {
			body += "\nPayout reference: " + w.PayoutReference
		}
	case ledger.WithdrawalRejected:
		subject = "Your withdrawal was rejected"
		body = fmt.Sprintf("Your withdrawal of %s was rejected and the amount returned to your balance.", money.WithSymbol(w.Amount))
		if w.Reason != "" {
			body += "\nReason: " + w.Reason
		}
	default:
		return fmt.Errorf("withdrawal %s is not decided", w.ID)
	}
	return q.enqueue(ctx, TaskWithdrawalDecided, QueueEmails, WithdrawalDecidedPayload{
		WithdrawalID: w.ID,
		AccountID:    w.AccountID,
		Status:       string(w.Status),
		Envelope:     EmailEnvelope{To: email, Subject: subject, Body: body},
		SentAt:       q.now(),
	})
}

// Nop drops every notification.
type Nop struct{}

func (Nop) StatementReady(context.Context, ledger.Statement, string) error { return nil }
func (Nop) IssueReported(context.Context, ledger.IssueReport, ledger.Account) error {
	return nil
}
func (Nop) WithdrawalDecided(context.Context, ledger.WithdrawalRequest, string) error { return nil }
