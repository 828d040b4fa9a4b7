package alerts

import "time"

// Task type constants
const (
	TaskStatementReady    = "email:statement_ready"
	TaskIssueReported     = "email:issue_reported"
	TaskWithdrawalDecided = "email:withdrawal_decided"
)

const (
	QueueEmails = "emails"
	QueueAlerts = "alerts"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Statement ready payload (sent to driver)
type StatementReadyPayload struct {
	StatementID string        `json:"statement_id"`
	AccountID   string        `json:"account_id"`
	Reference   string        `json:"reference"`
	Envelope    EmailEnvelope `json:"envelope"`
	SentAt      time.Time     `json:"sent_at"`
}

// Issue reported payload (sent to admins)
type IssueReportedPayload struct {
	ReportID  string        `json:"report_id"`
	AccountID string        `json:"account_id"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Withdrawal decided payload (sent to driver)
type WithdrawalDecidedPayload struct {
	WithdrawalID string        `json:"withdrawal_id"`
	AccountID    string        `json:"account_id"`
	Status       string        `json:"status"`
	Envelope     EmailEnvelope `json:"envelope"`
	SentAt       time.Time     `json:"sent_at"`
}
