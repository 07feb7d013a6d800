package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer enqueues tasks onto one Kafka topic. Messages are keyed by
// task key (the job id) so updates for the same job stay ordered within
// a partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Enqueue writes one task, retrying leader elections briefly. Fire and
// forget from the caller's perspective: the job row is already durable
// in the store before this is called.
func (p *Producer) Enqueue(ctx context.Context, task *Task) error {
	data, err := task.Encode()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(task.Key),
		Value: data,
		Time:  time.Now(),
	}
	var writeErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		writeErr = p.writer.WriteMessages(writeCtx, msg)
		cancel()
		if writeErr == nil {
			return nil
		}
		if errors.Is(writeErr, kafka.NotLeaderForPartition) || errors.Is(writeErr, kafka.LeaderNotAvailable) {
			slog.Debug("Queue enqueue retrying", "topic", p.topic, "attempt", attempt, "error", writeErr)
			continue
		}
		break
	}
	return fmt.Errorf("enqueue %s to %s: %w", task.Name, p.topic, writeErr)
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Handler processes one task. Errors are logged, not retried here;
// at-least-once redelivery comes from the consumer group offset model.
type Handler func(ctx context.Context, task *Task)

// Consumer pulls tasks from one topic as part of a consumer group, so a
// given message is processed by at most one worker at a time.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a group consumer for the given topic.
func NewConsumer(brokers, group, topic string) *Consumer {
	return &Consumer{
		topic: topic,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  strings.Split(brokers, ","),
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Run consumes until the context is cancelled, dispatching each decoded
// task to the handler. Malformed messages are dropped with a warning.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.reader.Close()
	slog.Info("Queue consumer started", "topic", c.topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Queue consumer stopped", "topic", c.topic)
				return ctx.Err()
			}
			slog.Warn("Queue read error", "topic", c.topic, "error", err)
			continue
		}
		task, err := DecodeTask(msg.Value)
		if err != nil {
			slog.Warn("Queue message malformed, dropping", "topic", c.topic, "error", err)
			continue
		}
		handle(ctx, task)
	}
}
