package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/postcodecheck/addresscleaner/internal/service"
	pkgkafka "github.com/postcodecheck/addresscleaner/pkg/kafka"
)

// Consumer applies reference change events to the search index.
type Consumer struct {
	references *service.ReferenceService
	logger     *slog.Logger
}

// NewConsumer creates a new reference event consumer.
func NewConsumer(references *service.ReferenceService, logger *slog.Logger) *Consumer {
	return &Consumer{
		references: references,
		logger:     logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicReferenceUpserted:
		return c.handleUpserted(ctx, event)
	case TopicReferenceDeleted:
		return c.handleDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data ReferenceUpsertedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal reference.upserted data: %w", err)
	}

	record, err := c.references.Upsert(ctx, data)
	if err != nil {
		return fmt.Errorf("index reference from upserted event: %w", err)
	}

	c.logger.InfoContext(ctx, "indexed reference from upserted event",
		slog.String("reference_id", record.ID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func (c *Consumer) handleDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ReferenceDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal reference.deleted data: %w", err)
	}

	if err := c.references.Delete(ctx, data.ID); err != nil {
		return fmt.Errorf("delete reference from deleted event: %w", err)
	}

	c.logger.InfoContext(ctx, "deleted reference from deleted event",
		slog.String("reference_id", data.ID),
		slog.String("event_id", event.EventID),
	)
	return nil
}
