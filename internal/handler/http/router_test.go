package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/engine"
	"github.com/postcodecheck/addresscleaner/internal/engine/memory"
	"github.com/postcodecheck/addresscleaner/internal/normalize"
	"github.com/postcodecheck/addresscleaner/internal/query"
	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/health"
	"github.com/postcodecheck/addresscleaner/pkg/middleware"
)

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededEngine(t *testing.T) *memory.Engine {
	t.Helper()
	eng := memory.New()
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.ReferenceRecord{
		domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "", domain.NumberTypeEven, 2, 40),
		domain.NewReferenceRecord("6711AA", "Kerkweg", "Ede", "", domain.NumberTypeOdd, 1, 99),
	}))
	return eng
}

func newTestRouter(t *testing.T, eng engine.SearchEngine, cfg RouterConfig) http.Handler {
	t.Helper()
	logger := testLogger()
	resolver := service.NewResolver(normalize.NewNormalizer(normalize.DefaultSynonymTable()), eng, service.DefaultResolverConfig(), logger)
	references := service.NewReferenceService(eng, logger)
	if cfg.ServiceName == "" {
		cfg.ServiceName = "addresscleaner-test"
	}
	return NewRouter(cfg, resolver, references, health.NewHandler(), logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestResolve_Match(t *testing.T) {
	router := newTestRouter(t, seededEngine(t), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve",
		`{"street":"Dorpstraat 28","city":"amsterdam"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.Resolution
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.Matched)
	assert.Equal(t, "1234AB", res.Address.Postcode)
	assert.Equal(t, "Dorpstraat", res.Address.Street)
	assert.Equal(t, "28", res.Address.HouseNumber)
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationHeader))
}

func TestResolve_NoMatchIsOK(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve", `{"street":"Nergensweg 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.Resolution
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.False(t, res.Matched)
}

func TestResolve_Validation(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty address", `{}`, "VALIDATION_ERROR"},
		{"unknown field", `{"straat":"Dorpstraat"}`, "INVALID_INPUT"},
		{"malformed json", `{"street":`, "INVALID_INPUT"},
		{"too long", `{"postcode":"12345678901"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestResolve_RequiresJSONContentType(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses/resolve", strings.NewReader(`{"city":"Ede"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// downEngine fails every search.
type downEngine struct {
	*memory.Engine
	err error
}

func (d *downEngine) Search(context.Context, *query.Bool, int) ([]domain.Candidate, error) {
	return nil, d.err
}

func TestResolve_EngineFailure(t *testing.T) {
	router := newTestRouter(t, &downEngine{Engine: memory.New(), err: errors.New("connection refused")}, RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve", `{"city":"Ede"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UPSTREAM_ERROR", resp.Error.Code)
}

func TestResolveBatch(t *testing.T) {
	router := newTestRouter(t, seededEngine(t), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve/batch",
		`{"addresses":[{"street":"Kerkweg 5","city":"Ede"},{"street":"Nergensweg 1","city":"Nergens"},{"street":"Dorpstraat 2","city":"Amsterdam"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var batch BatchResponse
	require.NoError(t, json.Unmarshal(resp.Data, &batch))
	require.Len(t, batch.Results, 3)
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, "Kerkweg", batch.Results[0].Address.Street)
	assert.Equal(t, "Dorpstraat", batch.Results[2].Address.Street)
}

func TestResolveBatch_TooLarge(t *testing.T) {
	router := newTestRouter(t, seededEngine(t), RouterConfig{MaxBatchSize: 1})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve/batch",
		`{"addresses":[{"city":"Ede"},{"city":"Epe"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "at most 1 allowed")
}

func TestResolveBatch_ItemValidation(t *testing.T) {
	router := newTestRouter(t, seededEngine(t), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/resolve/batch",
		`{"addresses":[{"city":"Ede"},{}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "addresses[1].description")
}

func TestExplain(t *testing.T) {
	router := newTestRouter(t, seededEngine(t), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/explain", `{"street":"Kerkweg 5","city":"Ede"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var exp service.Explanation
	require.NoError(t, json.Unmarshal(resp.Data, &exp))
	assert.Equal(t, "5", exp.Normalized.HouseNumber)
	assert.NotEmpty(t, exp.Query)
	require.NotEmpty(t, exp.Candidates)
	assert.Equal(t, 0, exp.Winner)
	assert.True(t, exp.Resolution.Matched)
}

func TestNormalize(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/addresses/normalize",
		`{"street":"Eikenlaan 31a en 33b","postcode":"1234 ab"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var addr domain.Address
	require.NoError(t, json.Unmarshal(resp.Data, &addr))
	assert.Equal(t, domain.Address{
		Street:           "Eikenlaan",
		HouseNumber:      "31a",
		HouseNumberAffix: "33b",
		Postcode:         "1234AB",
	}, addr)
}

func TestReferences_UpsertSuggestDelete(t *testing.T) {
	eng := memory.New()
	router := newTestRouter(t, eng, RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/references",
		`{"postcode":"1234 AB","street":"Dorpstraat","city":"Amsterdam","numbertype":"even","minnumber":2,"maxnumber":40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record domain.ReferenceRecord
	require.NoError(t, json.Unmarshal(resp.Data, &record))
	assert.Equal(t, "1234AB", record.Postcode)
	assert.Equal(t, 1, eng.Len())

	rec, resp = do(t, router, http.MethodGet, "/api/v1/streets/suggest?q=dorp&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestions struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &suggestions))
	assert.Equal(t, []string{"Dorpstraat"}, suggestions.Suggestions)

	rec, _ = do(t, router, http.MethodDelete, "/api/v1/references/"+record.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, eng.Len())
}

func TestReferences_UpsertValidation(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/references",
		`{"postcode":"12AB","street":"Dorpstraat","city":"Amsterdam","numbertype":"prime","minnumber":10,"maxnumber":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "postcode")
	assert.Contains(t, resp.Error.Fields, "numbertype")
	assert.Contains(t, resp.Error.Fields, "maxnumber")
}

func TestReferences_Bulk(t *testing.T) {
	eng := memory.New()
	router := newTestRouter(t, eng, RouterConfig{})

	rec, resp := do(t, router, http.MethodPost, "/api/v1/references/bulk", `{"references":[
		{"postcode":"1234AB","street":"Dorpstraat","city":"Amsterdam","numbertype":"even","minnumber":2,"maxnumber":40},
		{"postcode":"6711AA","street":"Kerkweg","city":"Ede","numbertype":"odd","minnumber":1,"maxnumber":99}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]int
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, 2, out["indexed"])
	assert.Equal(t, 2, eng.Len())
}

func TestReferences_DeleteRejectsBadID(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, resp := do(t, router, http.MethodDelete, "/api/v1/references/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestSuggest_BadLimit(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, resp := do(t, router, http.MethodGet, "/api/v1/streets/suggest?q=dorp&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestRateLimitGuardsResolve(t *testing.T) {
	rl := middleware.NewRateLimiter(0.001, 1, testLogger())
	t.Cleanup(rl.Stop)
	router := newTestRouter(t, seededEngine(t), RouterConfig{RateLimiter: rl})

	rec, _ := do(t, router, http.MethodPost, "/api/v1/addresses/resolve", `{"city":"Ede"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodPost, "/api/v1/addresses/resolve", `{"city":"Ede"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/streets/suggest?q=ker", "")
	assert.Equal(t, http.StatusOK, rec.Code, "suggest is not rate limited")
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, memory.New(), RouterConfig{})

	rec, _ := do(t, router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	router.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "http_requests_total")
}
