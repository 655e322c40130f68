package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/engine"
	apperrors "github.com/postcodecheck/addresscleaner/pkg/errors"
)

const (
	// DefaultSuggestLimit applies when no suggestion limit is given.
	DefaultSuggestLimit = 10
	// MaxSuggestLimit caps the number of suggestions per request.
	MaxSuggestLimit = 50
	// ImportBatchSize is the number of records sent to the engine per bulk request.
	ImportBatchSize = 1000
)

// ReferenceSource yields reference records, one at a time, to fn.
type ReferenceSource interface {
	Name() string
	Each(ctx context.Context, fn func(domain.ReferenceRecord) error) error
}

// ReferenceInput holds the fields of one reference record to store.
type ReferenceInput struct {
	Postcode     string `json:"postcode"`
	Street       string `json:"street"`
	City         string `json:"city"`
	Municipality string `json:"municipality,omitempty"`
	NumberType   string `json:"numbertype"`
	MinNumber    int    `json:"minnumber"`
	MaxNumber    int    `json:"maxnumber"`
}

// Record validates the input and converts it into a reference record with its
// deterministic ID.
func (in ReferenceInput) Record() (domain.ReferenceRecord, error) {
	nt := domain.NumberType(strings.ToLower(strings.TrimSpace(in.NumberType)))
	switch {
	case strings.TrimSpace(in.Street) == "":
		return domain.ReferenceRecord{}, apperrors.InvalidInput("street is required")
	case strings.TrimSpace(in.City) == "":
		return domain.ReferenceRecord{}, apperrors.InvalidInput("city is required")
	case !nt.IsValid():
		return domain.ReferenceRecord{}, apperrors.InvalidInput(fmt.Sprintf("unknown numbertype %q", in.NumberType))
	case in.MinNumber < 0 || in.MaxNumber < in.MinNumber:
		return domain.ReferenceRecord{}, apperrors.InvalidInput(
			fmt.Sprintf("invalid house number range %d-%d", in.MinNumber, in.MaxNumber))
	}

	postcode := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(in.Postcode), " ", ""))
	return domain.NewReferenceRecord(postcode, in.Street, in.City, in.Municipality, nt, in.MinNumber, in.MaxNumber), nil
}

// ReferenceStore persists reference records next to the search index.
type ReferenceStore interface {
	Store(ctx context.Context, records []domain.ReferenceRecord) (int, error)
	Delete(ctx context.Context, id string) error
}

// CacheInvalidator drops resolutions that may be stale after the corpus changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ReferenceService maintains the reference corpus held by the search engine.
type ReferenceService struct {
	engine      engine.SearchEngine
	store       ReferenceStore
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewReferenceService creates a new reference service.
func NewReferenceService(eng engine.SearchEngine, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{
		engine: eng,
		logger: logger,
	}
}

// WithStore makes every change persist to store before it is indexed.
func (s *ReferenceService) WithStore(store ReferenceStore) *ReferenceService {
	s.store = store
	return s
}

// WithCacheInvalidation clears inv after every change to the corpus.
func (s *ReferenceService) WithCacheInvalidation(inv CacheInvalidator) *ReferenceService {
	s.invalidator = inv
	return s
}

// Upsert validates and indexes a single reference record. Storing the same
// record twice yields the same ID and overwrites it.
func (s *ReferenceService) Upsert(ctx context.Context, in ReferenceInput) (domain.ReferenceRecord, error) {
	record, err := in.Record()
	if err != nil {
		return domain.ReferenceRecord{}, err
	}

	if err := s.Index(ctx, record); err != nil {
		return domain.ReferenceRecord{}, err
	}
	return record, nil
}

// Index stores an already built record.
func (s *ReferenceService) Index(ctx context.Context, record domain.ReferenceRecord) error {
	if record.ID == "" {
		record.ID = record.Key()
	}
	if s.store != nil {
		if _, err := s.store.Store(ctx, []domain.ReferenceRecord{record}); err != nil {
			return fmt.Errorf("store reference: %w", err)
		}
	}
	if err := s.engine.Index(ctx, &record); err != nil {
		return apperrors.Unavailable(searchCollaborator, fmt.Errorf("index reference: %w", err))
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "reference indexed",
		slog.String("reference_id", record.ID),
		slog.String("postcode", record.Postcode),
		slog.String("street", record.Street),
	)
	return nil
}

// Delete removes a reference record from the index.
func (s *ReferenceService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("id is required")
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete stored reference: %w", err)
		}
	}

	if err := s.engine.Delete(ctx, id); err != nil {
		return apperrors.Unavailable(searchCollaborator, fmt.Errorf("delete reference: %w", err))
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "reference deleted from index",
		slog.String("reference_id", id),
	)
	return nil
}

// BulkIndex validates every input and indexes them in one request. Nothing is
// indexed when any input is invalid.
func (s *ReferenceService) BulkIndex(ctx context.Context, inputs []ReferenceInput) ([]domain.ReferenceRecord, error) {
	records := make([]domain.ReferenceRecord, 0, len(inputs))
	for i, in := range inputs {
		record, err := in.Record()
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, apperrors.InvalidInput(fmt.Sprintf("item %d: %s", i, appErr.Message))
			}
			return nil, err
		}
		records = append(records, record)
	}

	if s.store != nil {
		if _, err := s.store.Store(ctx, records); err != nil {
			return nil, fmt.Errorf("store references: %w", err)
		}
	}
	if err := s.engine.BulkIndex(ctx, records); err != nil {
		return nil, apperrors.Unavailable(searchCollaborator, fmt.Errorf("bulk index: %w", err))
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "bulk index completed",
		slog.Int("count", len(records)),
	)
	return records, nil
}

// Import streams every record of src into the engine in batches of
// ImportBatchSize and returns the number of records indexed. Imported records
// are not written to the store.
func (s *ReferenceService) Import(ctx context.Context, src ReferenceSource) (int, error) {
	batch := make([]domain.ReferenceRecord, 0, ImportBatchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.engine.BulkIndex(ctx, batch); err != nil {
			return apperrors.Unavailable(searchCollaborator, fmt.Errorf("bulk index: %w", err))
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := src.Each(ctx, func(r domain.ReferenceRecord) error {
		if r.ID == "" {
			r.ID = r.Key()
		}
		batch = append(batch, r)
		if len(batch) == ImportBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("import %s: %w", src.Name(), err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "reference import completed",
		slog.String("source", src.Name()),
		slog.Int("count", total),
	)
	return total, nil
}

// Suggest returns street names starting with prefix. limit defaults to
// DefaultSuggestLimit and is capped at MaxSuggestLimit.
func (s *ReferenceService) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		limit = MaxSuggestLimit
	}

	names, err := s.engine.Suggest(ctx, prefix, limit)
	if err != nil {
		return nil, apperrors.Unavailable(searchCollaborator, fmt.Errorf("suggest: %w", err))
	}
	return names, nil
}

// invalidate clears the resolution cache. Failures are logged; stale entries
// still expire with their TTL.
func (s *ReferenceService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "resolution cache invalidation failed",
			slog.String("error", err.Error()),
		)
	}
}
