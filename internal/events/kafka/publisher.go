package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models/events"
)

const DefaultTopic = "wallet.transaction_applied"

// Publisher writes TransactionApplied events to Kafka. Messages are keyed by
// account id so every event of one account lands on the same partition, in
// commit order.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.TransactionApplied) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(event events.TransactionApplied) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("transaction_applied")},
		},
	}, nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
