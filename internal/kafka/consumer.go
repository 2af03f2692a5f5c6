package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
}

// NewConsumer reads topic from the beginning. A non-empty groupID joins a
// consumer group and resumes from its committed offset instead.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	}
	if groupID == "" {
		cfg.Partition = 0
		cfg.StartOffset = kafka.FirstOffset
	}
	return &Consumer{reader: kafka.NewReader(cfg), log: log}
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, log: log}
}

// Start hands every decoded entry to handler until ctx is done.
func (c *Consumer) Start(ctx context.Context, handler func(models.Entry) error) error {
	c.log.LogKafka("CONSUME", "entries", "Kafka consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var entry models.Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal entry at offset %d: %v", msg.Offset, err))
			continue
		}

		if err := handler(entry); err != nil {
			return fmt.Errorf("handler rejected entry %d: %w", entry.Seq, err)
		}
	}
}

// Drain reads until no message arrives for idle, then returns the entries
// ordered by seq with redeliveries removed.
func (c *Consumer) Drain(ctx context.Context, idle time.Duration) ([]models.Entry, error) {
	bySeq := make(map[uint64]models.Entry)
	for {
		readCtx, cancel := context.WithTimeout(ctx, idle)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}

		var entry models.Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode message at offset %d: %w", msg.Offset, err)
		}
		if prev, ok := bySeq[entry.Seq]; ok && prev.Hash != entry.Hash {
			return nil, fmt.Errorf("conflicting entries for seq %d", entry.Seq)
		}
		bySeq[entry.Seq] = entry
	}

	entries := make([]models.Entry, 0, len(bySeq))
	for _, e := range bySeq {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	c.log.LogKafka("DRAIN", "entries", fmt.Sprintf("read %d entries", len(entries)))
	return entries, nil
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
