package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicWithdrawalRequested = "withdrawal.requested"
	TopicWithdrawalDecided   = "withdrawal.decided"
	TopicStatementGenerated  = "statement.generated"
)

type WithdrawalRequested struct {
	WithdrawalID  string    `json:"withdrawal_id"`
	AccountID     string    `json:"account_id"`
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	RequestedAt   time.Time `json:"requested_at"`
}

type WithdrawalDecided struct {
	WithdrawalID string    `json:"withdrawal_id"`
	AccountID    string    `json:"account_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	DecidedAt    time.Time `json:"decided_at"`
}

type StatementGenerated struct {
	StatementID string    `json:"statement_id"`
	AccountID   string    `json:"account_id"`
	Reference   string    `json:"reference"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Revision    int       `json:"revision"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Publisher emits domain events after their transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher writes to any topic; each message carries its own.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
