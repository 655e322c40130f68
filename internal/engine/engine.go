package engine

import (
	"context"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/query"
)

// SearchEngine defines the interface for indexing and retrieving reference
// records. Implementations may use Elasticsearch, in-memory storage, or other
// backends, and must support concurrent reads.
type SearchEngine interface {
	// Index adds or updates a single reference record.
	Index(ctx context.Context, record *domain.ReferenceRecord) error

	// BulkIndex adds or updates multiple reference records.
	BulkIndex(ctx context.Context, records []domain.ReferenceRecord) error

	// Delete removes a reference record by its ID.
	Delete(ctx context.Context, id string) error

	// Search executes q and returns at most limit candidates ordered by
	// descending score. An empty query returns no candidates.
	Search(ctx context.Context, q *query.Bool, limit int) ([]domain.Candidate, error)

	// Suggest returns distinct street names starting with prefix.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}
