package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker consumes email tasks from Redis and hands them to a Mailer.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *zap.Logger
}

func NewWorker(opt asynq.RedisConnOpt, mailer Mailer, log *zap.Logger) *Worker {
	log = log.Named("alerts")
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueEmails: 10,
			QueueAlerts: 5,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	return &Worker{server: server, mux: NewMux(mailer, log), log: log}
}

// NewMux routes every email task type to mailer.
func NewMux(mailer Mailer, log *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStatementReady, envelopeHandler[StatementReadyPayload](mailer, log,
		func(p StatementReadyPayload) (EmailEnvelope, []zap.Field) {
			return p.Envelope, []zap.Field{zap.String("statement_id", p.StatementID), zap.String("reference", p.Reference)}
		}))
	mux.HandleFunc(TaskIssueReported, envelopeHandler[IssueReportedPayload](mailer, log,
		func(p IssueReportedPayload) (EmailEnvelope, []zap.Field) {
			return p.Envelope, []zap.Field{zap.String("report_id", p.ReportID)}
		}))
	mux.HandleFunc(TaskWithdrawalDecided, envelopeHandler[WithdrawalDecidedPayload](mailer, log,
		func(p WithdrawalDecidedPayload) (EmailEnvelope, []zap.Field) {
			return p.Envelope, []zap.Field{zap.String("withdrawal_id", p.WithdrawalID), zap.String("status", p.Status)}
		}))
	return mux
}

func envelopeHandler[P any](mailer Mailer, log *zap.Logger, extract func(P) (EmailEnvelope, []zap.Field)) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var p P
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		env, fields := extract(p)
		fields = append(fields, zap.String("type", t.Type()))
		if env.To == "" {
			log.Warn("email dropped: no recipient", fields...)
			return nil
		}
		if err := mailer.Send(ctx, env.To, env.Subject, env.Body); err != nil {
			log.Error("email send failed", append(fields, zap.Error(err))...)
			return err
		}
		log.Info("email sent", fields...)
		return nil
	}
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start alerts worker: %w", err)
	}
	w.log.Info("alerts worker started")
	return nil
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
