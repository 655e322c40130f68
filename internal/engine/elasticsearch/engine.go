package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/query"
)

// Engine is an Elasticsearch-backed implementation of the SearchEngine interface.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// indexDocument is the stored form of a reference record.
type indexDocument struct {
	domain.ReferenceRecord
	Complete string `json:"complete"`
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  float64                `json:"_score"`
			Source domain.ReferenceRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch engine connected to the given URL.
// It ensures the reference index exists, creating it if necessary.
// If indexName is empty, DefaultIndexName is used.
func New(esURL string, indexName string, logger *slog.Logger) (*Engine, error) {
	return NewWithConfig(elasticsearch.Config{Addresses: []string{esURL}}, indexName, logger)
}

// NewWithConfig is New with full control over the client configuration.
func NewWithConfig(cfg elasticsearch.Config, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := e.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return e, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex checks whether the reference index exists and creates it if not.
func (e *Engine) ensureIndex() error {
	res, err := e.client.Indices.Exists([]string{e.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", "index", e.indexName)
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", "index", e.indexName)
	return nil
}

// Index adds or updates a single record in the Elasticsearch index.
func (e *Engine) Index(ctx context.Context, record *domain.ReferenceRecord) error {
	data, err := json.Marshal(newIndexDocument(*record))
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal record: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(record.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch index", res)
	}

	e.logger.Debug("indexed reference record", "id", record.ID, "postcode", record.Postcode, "street", record.Street)
	return nil
}

// Delete removes a record from the Elasticsearch index by its ID.
// It does not return an error if the document does not exist (404 is ignored).
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete", res)
	}

	e.logger.Debug("deleted reference record", "id", id)
	return nil
}

// Search executes q against Elasticsearch and returns at most limit
// candidates in descending score order.
func (e *Engine) Search(ctx context.Context, q *query.Bool, limit int) ([]domain.Candidate, error) {
	// An empty bool query would match every document.
	if q.IsEmpty() || limit <= 0 {
		return []domain.Candidate{}, nil
	}

	data, err := json.Marshal(buildSearchBody(q, limit))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("elasticsearch search", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		record := hit.Source
		if record.ID == "" {
			record.ID = hit.ID
		}
		candidates = append(candidates, domain.Candidate{Record: record, Score: hit.Score})
	}

	e.logger.Debug("elasticsearch search", "query", q.String(), "hits", len(candidates))
	return candidates, nil
}

// buildSearchBody wraps the translated query with paging and a stable sort.
func buildSearchBody(q *query.Bool, limit int) map[string]interface{} {
	return map[string]interface{}{
		"query": translateQuery(q),
		"size":  limit,
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"id": "asc"},
		},
		"track_total_hits": false,
	}
}

// DeleteIndex removes the entire Elasticsearch index.
// It is intended for testing and administrative operations only.
// A 404 response is treated as success (index already absent).
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete index", res)
	}

	e.logger.Info("elasticsearch index deleted", "index", e.indexName)
	return nil
}

// BulkIndex adds or updates multiple records in the Elasticsearch index
// using the bulk NDJSON API.
func (e *Engine) BulkIndex(ctx context.Context, records []domain.ReferenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i := range records {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": e.indexName,
				"_id":    records[i].ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(newIndexDocument(records[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch bulk index", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	e.logger.Info("bulk indexed reference records", "count", len(records))
	return nil
}

func newIndexDocument(r domain.ReferenceRecord) indexDocument {
	return indexDocument{ReferenceRecord: r, Complete: r.Complete()}
}

// responseError turns an error response into an error, using the
// Elasticsearch error body when it can be decoded.
func responseError(op string, res *esapi.Response) error {
	var errResp esErrorResponse
	if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
