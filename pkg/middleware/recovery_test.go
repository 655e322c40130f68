package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/postcodecheck/addresscleaner/pkg/logger"
)

func TestRecovery_ReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(logger.NewWithWriter("test", "info", &buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil synonym table")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/addresses/resolve", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "nil synonym table")
}

func TestRecovery_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Recovery(discardLogger())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	h := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
