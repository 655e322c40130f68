package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// esSuggestResponse is the structure used to decode Elasticsearch suggest responses.
type esSuggestResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Street string `json:"street"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Suggest returns street name suggestions for the given prefix.
// It queries the street.autocomplete field and collapses hits on the street
// keyword so every name appears once.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"street.autocomplete": map[string]interface{}{
					"query":    prefix,
					"operator": "and",
				},
			},
		},
		"collapse": map[string]interface{}{"field": "street"},
		"size":     limit,
		"_source":  []string{"street"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("elasticsearch suggest", res)
	}

	var esResp esSuggestResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: decode response: %w", err)
	}

	// Deduplicate names while preserving order.
	seen := make(map[string]struct{})
	names := make([]string, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		name := hit.Source.Street
		if _, exists := seen[name]; !exists {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names, nil
}
