// Package event carries reference corpus changes over Kafka.
package event

import (
	"github.com/postcodecheck/addresscleaner/internal/service"
)

// Kafka topics of reference change events. The topic name doubles as the
// event type.
const (
	TopicReferenceUpserted = "addresscleaner.reference.upserted"
	TopicReferenceDeleted  = "addresscleaner.reference.deleted"
)

// Topics lists every topic the consumer subscribes to.
var Topics = []string{TopicReferenceUpserted, TopicReferenceDeleted}

// AggregateTypeReference names the aggregate of reference events.
const AggregateTypeReference = "reference"

// SourceAddressCleaner identifies events published by this module.
const SourceAddressCleaner = "addresscleaner"

// ReferenceUpsertedData is the payload of a reference.upserted event.
type ReferenceUpsertedData = service.ReferenceInput

// ReferenceDeletedData is the payload of a reference.deleted event.
type ReferenceDeletedData struct {
	ID string `json:"id"`
}
