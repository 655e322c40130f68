package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/postcodecheck/addresscleaner/pkg/logger"
)

// TopicPrefix prefixes every topic owned by this service.
const TopicPrefix = "addresscleaner"

// Topic constructs a fully-qualified topic name, e.g. Topic("reference", "upserted").
func Topic(aggregate, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, aggregate, action)
}

// maxHandlerRetries bounds handler attempts before a message is dead-lettered
// and committed.
const maxHandlerRetries = 3

// Handler processes one event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// Consumer reads events from one topic, runs the handler with retries and
// commits each message once it is handled or dead-lettered.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	backoff   time.Duration
	handler   Handler
	dlq       *DLQProducer
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in group cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handler, logger)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:  r,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		backoff: backoff,
		handler: handler,
		logger:  logger,
	}
}

// WithDLQ dead-letters messages whose handler fails every retry.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start consumes messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfoContext(ctx, "consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		ConsumerMessagesReceived.WithLabelValues(c.topic, c.group).Inc()
		if err := c.process(ctx, msg); err != nil {
			// only cancellation aborts processing
			return c.Close()
		}
	}
}

// process handles one message and commits it. It returns an error only when
// ctx is canceled mid-retry, leaving the message uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable message",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		c.deadLetter(ctx, msg, err)
		c.commit(ctx, msg)
		return nil
	}

	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	log := logger.WithContext(ctx, c.logger)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		log.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
		)
		if attempt == maxHandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	ConsumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	if lastErr != nil {
		ConsumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
		log.ErrorContext(ctx, "handler failed after all retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		c.deadLetter(ctx, msg, lastErr)
	} else {
		ConsumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
	}

	c.commit(ctx, msg)
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err == nil {
		ConsumerDLQPublished.WithLabelValues(c.topic, c.group).Inc()
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
