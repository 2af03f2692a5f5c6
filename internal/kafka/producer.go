package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/models"
)

const (
	DefaultEntriesTopic = "ticketing.ledger.entries"
	DefaultPayoutsTopic = "ticketing.ledger.payouts"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes committed journal entries. Every entry goes to the
// entries topic; entries that move money are also sent to the payouts topic
// for the settlement service.
type Producer struct {
	Writer       MessageWriter
	EntriesTopic string
	PayoutsTopic string
	log          *logger.Logger
}

func NewProducer(brokers []string, entriesTopic, payoutsTopic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		Writer:       writer,
		EntriesTopic: entriesTopic,
		PayoutsTopic: payoutsTopic,
		log:          log,
	}
}

// Publish streams entries to Kafka in journal order.
func (p *Producer) Publish(ctx context.Context, entries []models.Entry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry %d: %w", e.Seq, err)
		}
		headers := []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
			{Key: "seq", Value: []byte(strconv.FormatUint(e.Seq, 10))},
		}

		msgs = append(msgs, kafka.Message{
			Topic:   p.EntriesTopic,
			Key:     []byte(entryKey(e)),
			Value:   value,
			Headers: headers,
		})
		if e.MovesMoney() && p.PayoutsTopic != "" {
			msgs = append(msgs, kafka.Message{
				Topic:   p.PayoutsTopic,
				Key:     []byte(payoutAccount(e)),
				Value:   value,
				Headers: headers,
			})
		}
	}

	if err := p.Writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d entries: %w", len(entries), err)
	}
	for _, e := range entries {
		p.log.LogKafka("PUBLISH", p.EntriesTopic, fmt.Sprintf("seq=%d kind=%s", e.Seq, e.Kind))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// entryKey keeps the entries of one event on one partition.
func entryKey(e models.Entry) string {
	if e.EventID != 0 {
		return "event-" + strconv.FormatUint(e.EventID, 10)
	}
	return "account-" + e.Actor.String()
}

// payoutAccount is the account whose balance the entry changes.
func payoutAccount(e models.Entry) string {
	if e.Kind == models.EntryTicketSold {
		return e.Counterparty.String()
	}
	return e.Actor.String()
}
