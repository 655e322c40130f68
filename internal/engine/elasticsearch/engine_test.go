package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/query"
)

// fakeCluster records requests and answers them like a single-node cluster.
type fakeCluster struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	handle   func(w http.ResponseWriter, r *http.Request) bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	f.bodies[key] = string(body)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if f.handle != nil && f.handle(w, r) {
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func (f *fakeCluster) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeCluster) body(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func newFakeEngine(t *testing.T, handle func(w http.ResponseWriter, r *http.Request) bool) (*Engine, *fakeCluster) {
	t.Helper()

	cluster := &fakeCluster{bodies: make(map[string]string), handle: handle}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	eng, err := NewWithConfig(elasticsearch.Config{Addresses: []string{srv.URL}}, "refs", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return eng, cluster
}

func TestNew_CreatesMissingIndex(t *testing.T) {
	_, cluster := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return true
		}
		return false
	})

	assert.Equal(t, []string{"HEAD /refs", "PUT /refs"}, cluster.seen())
	assert.Contains(t, cluster.body("PUT /refs"), `"dutch_address"`)
}

func TestEngine_Search_DecodesHits(t *testing.T) {
	eng, cluster := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/refs/_search" {
			return false
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"a","_score":12.5,"_source":{"id":"a","postcode":"1234AB","street":"Dorpstraat","city":"Amsterdam","numbertype":"even","minnumber":2,"maxnumber":40,"complete":"1234AB Dorpstraat Amsterdam"}},
			{"_id":"b","_score":3,"_source":{"postcode":"1234AC","street":"Dorpstraat","city":"Amsterdam","numbertype":"odd","minnumber":1,"maxnumber":39}}
		]}}`))
		return true
	})

	got, err := eng.Search(context.Background(), query.Build(domain.Address{Street: "Dorpstraat"}), 20)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 12.5, got[0].Score)
	assert.Equal(t, domain.ReferenceRecord{
		ID: "a", Postcode: "1234AB", Street: "Dorpstraat", City: "Amsterdam",
		NumberType: domain.NumberTypeEven, MinNumber: 2, MaxNumber: 40,
	}, got[0].Record)
	assert.Equal(t, "b", got[1].Record.ID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cluster.body("POST /refs/_search")), &body))
	assert.Equal(t, 20.0, body["size"])
	assert.Contains(t, body["query"], "bool")
}

func TestEngine_Search_EmptyQuerySkipsCluster(t *testing.T) {
	eng, cluster := newFakeEngine(t, nil)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{}), 20)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"HEAD /refs"}, cluster.seen())
}

func TestEngine_Search_ErrorResponse(t *testing.T) {
	eng, _ := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/refs/_search" {
			return false
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"query_shard_exception","reason":"failed to create query"},"status":400}`))
		return true
	})

	_, err := eng.Search(context.Background(), query.Build(domain.Address{City: "Ede"}), 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query_shard_exception")
}

func TestEngine_IndexSendsCompleteField(t *testing.T) {
	eng, cluster := newFakeEngine(t, nil)
	r := domain.NewReferenceRecord("5754AB", "Milhezerweg", "Deurne", "Deurne", domain.NumberTypeMixed, 1, 99)

	require.NoError(t, eng.Index(context.Background(), &r))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cluster.body("PUT /refs/_doc/"+r.ID)), &doc))
	assert.Equal(t, "5754AB Milhezerweg Deurne", doc["complete"])
	assert.Equal(t, "mixed", doc["numbertype"])
}

func TestEngine_BulkIndex(t *testing.T) {
	eng, cluster := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/refs/_bulk" {
			return false
		}
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
		return true
	})
	records := []domain.ReferenceRecord{
		domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "", domain.NumberTypeEven, 2, 40),
		domain.NewReferenceRecord("1234AC", "Dorpstraat", "Amsterdam", "", domain.NumberTypeOdd, 1, 39),
	}

	require.NoError(t, eng.BulkIndex(context.Background(), records))

	lines := strings.Split(strings.TrimSpace(cluster.body("POST /refs/_bulk")), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], records[0].ID)
	assert.Contains(t, lines[3], `"complete":"1234AC Dorpstraat Amsterdam"`)

	// nothing to send
	require.NoError(t, eng.BulkIndex(context.Background(), nil))
}

func TestEngine_BulkIndex_PartialErrors(t *testing.T) {
	eng, _ := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/refs/_bulk" {
			return false
		}
		_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"_id":"x","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad minnumber"}}}]}`))
		return true
	})

	err := eng.BulkIndex(context.Background(), []domain.ReferenceRecord{{ID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id=x: mapper_parsing_exception: bad minnumber")
}

func TestEngine_DeleteIgnoresNotFound(t *testing.T) {
	eng, _ := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method != http.MethodDelete {
			return false
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
		return true
	})

	assert.NoError(t, eng.Delete(context.Background(), "missing"))
}

func TestEngine_Suggest(t *testing.T) {
	eng, cluster := newFakeEngine(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/refs/_search" {
			return false
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"street":"Dorpstraat"}},
			{"_source":{"street":"Dorpsweg"}},
			{"_source":{"street":"Dorpstraat"}}
		]}}`))
		return true
	})

	got, err := eng.Suggest(context.Background(), "dorp", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dorpstraat", "Dorpsweg"}, got)
	assert.Contains(t, cluster.body("POST /refs/_search"), `"collapse":{"field":"street"}`)

	got, err = eng.Suggest(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
