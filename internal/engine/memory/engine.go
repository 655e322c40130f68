package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/query"
)

// Engine is an in-memory implementation of the SearchEngine interface.
// It evaluates the query tree against every stored record, so it suits tests,
// the CLI and small corpora. Thread-safe via sync.RWMutex.
type Engine struct {
	mu      sync.RWMutex
	records map[string]document
}

// document is a stored record with its analyzed text fields.
type document struct {
	record   domain.ReferenceRecord
	street   []string
	complete []string
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		records: make(map[string]document),
	}
}

// Index adds or updates a single record in the in-memory index.
func (e *Engine) Index(_ context.Context, record *domain.ReferenceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.records[record.ID] = newDocument(*record)
	return nil
}

// BulkIndex adds or updates multiple records in the in-memory index.
func (e *Engine) BulkIndex(_ context.Context, records []domain.ReferenceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range records {
		e.records[records[i].ID] = newDocument(records[i])
	}
	return nil
}

// Delete removes a record from the in-memory index by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.records, id)
	return nil
}

// Len returns the number of indexed records.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.records)
}

// Search scores every record against q and returns the best limit candidates.
// Equal scores are ordered by record ID so results are stable.
func (e *Engine) Search(ctx context.Context, q *query.Bool, limit int) ([]domain.Candidate, error) {
	if q.IsEmpty() || limit <= 0 {
		return []domain.Candidate{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]domain.Candidate, 0)
	for _, doc := range e.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if score, ok := doc.score(q); ok {
			matched = append(matched, domain.Candidate{Record: doc.record, Score: score})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].Record.ID < matched[j].Record.ID
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Suggest returns distinct street names whose folded form starts with prefix,
// in alphabetical order.
func (e *Engine) Suggest(_ context.Context, prefix string, limit int) ([]string, error) {
	prefix = foldText(strings.TrimSpace(prefix))
	if prefix == "" || limit <= 0 {
		return []string{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]struct{})
	suggestions := make([]string, 0)
	for _, doc := range e.records {
		street := doc.record.Street
		if _, ok := seen[street]; ok {
			continue
		}
		if strings.HasPrefix(foldText(street), prefix) {
			seen[street] = struct{}{}
			suggestions = append(suggestions, street)
		}
	}

	sort.Strings(suggestions)
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

func newDocument(r domain.ReferenceRecord) document {
	return document{
		record:   r,
		street:   analyzeDutch(r.Street),
		complete: analyzeDutch(r.Complete()),
	}
}
