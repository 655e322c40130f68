package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	pkgkafka "github.com/postcodecheck/addresscleaner/pkg/kafka"
	"github.com/postcodecheck/addresscleaner/pkg/logger"
)

// publisher is the part of *pkgkafka.Producer the event producer needs.
type publisher interface {
	Publish(ctx context.Context, topic string, events ...*pkgkafka.Event) error
}

// Producer publishes reference change events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new reference event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReferenceUpserted publishes reference.upserted events for inputs in
// one write. The aggregate ID is the record ID the inputs will be stored under.
func (p *Producer) PublishReferenceUpserted(ctx context.Context, inputs ...ReferenceUpsertedData) error {
	events := make([]*pkgkafka.Event, 0, len(inputs))
	for _, in := range inputs {
		record, err := in.Record()
		if err != nil {
			return fmt.Errorf("create reference.upserted event: %w", err)
		}
		event, err := pkgkafka.NewEvent(TopicReferenceUpserted, record.ID, SourceAddressCleaner, in)
		if err != nil {
			return fmt.Errorf("create reference.upserted event: %w", err)
		}
		events = append(events, p.decorate(ctx, event))
	}

	if err := p.kafka.Publish(ctx, TopicReferenceUpserted, events...); err != nil {
		return fmt.Errorf("publish reference.upserted: %w", err)
	}

	p.logger.InfoContext(ctx, "published reference.upserted events",
		slog.Int("count", len(events)),
	)
	return nil
}

// PublishRecordsUpserted publishes already built records, e.g. from an import.
func (p *Producer) PublishRecordsUpserted(ctx context.Context, records []domain.ReferenceRecord) error {
	inputs := make([]ReferenceUpsertedData, 0, len(records))
	for _, r := range records {
		inputs = append(inputs, ReferenceUpsertedData{
			Postcode:     r.Postcode,
			Street:       r.Street,
			City:         r.City,
			Municipality: r.Municipality,
			NumberType:   string(r.NumberType),
			MinNumber:    r.MinNumber,
			MaxNumber:    r.MaxNumber,
		})
	}
	return p.PublishReferenceUpserted(ctx, inputs...)
}

// PublishReferenceDeleted publishes a reference.deleted event.
func (p *Producer) PublishReferenceDeleted(ctx context.Context, id string) error {
	event, err := pkgkafka.NewEvent(TopicReferenceDeleted, id, SourceAddressCleaner, ReferenceDeletedData{ID: id})
	if err != nil {
		return fmt.Errorf("create reference.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReferenceDeleted, p.decorate(ctx, event)); err != nil {
		return fmt.Errorf("publish reference.deleted: %w", err)
	}

	p.logger.InfoContext(ctx, "published reference.deleted event",
		slog.String("reference_id", id),
	)
	return nil
}

func (p *Producer) decorate(ctx context.Context, event *pkgkafka.Event) *pkgkafka.Event {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	return event.WithMetadata("aggregate_type", AggregateTypeReference)
}
