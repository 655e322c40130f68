package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/httputil"
	"github.com/postcodecheck/addresscleaner/pkg/validator"
)

// ReferenceHandler handles HTTP requests for reference corpus endpoints.
type ReferenceHandler struct {
	service *service.ReferenceService
	logger  *slog.Logger
}

// NewReferenceHandler creates a new reference HTTP handler.
func NewReferenceHandler(svc *service.ReferenceService, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ReferenceRequest is the JSON request body for storing a reference record.
type ReferenceRequest struct {
	Postcode     string `json:"postcode" validate:"required,nlpostcode"`
	Street       string `json:"street" validate:"required,max=200"`
	City         string `json:"city" validate:"required,max=100"`
	Municipality string `json:"municipality" validate:"max=100"`
	NumberType   string `json:"numbertype" validate:"required,numbertype"`
	MinNumber    int    `json:"minnumber" validate:"gte=0"`
	MaxNumber    int    `json:"maxnumber" validate:"gtefield=MinNumber"`
}

func (r ReferenceRequest) input() service.ReferenceInput {
	return service.ReferenceInput{
		Postcode:     r.Postcode,
		Street:       r.Street,
		City:         r.City,
		Municipality: r.Municipality,
		NumberType:   r.NumberType,
		MinNumber:    r.MinNumber,
		MaxNumber:    r.MaxNumber,
	}
}

// BulkReferenceRequest is the JSON request body for bulk indexing references.
type BulkReferenceRequest struct {
	References []ReferenceRequest `json:"references" validate:"required,min=1,max=5000,dive"`
}

// --- Handlers ---

// Upsert handles POST /api/v1/references
func (h *ReferenceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ReferenceRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	record, err := h.service.Upsert(r.Context(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, record)
}

// BulkIndex handles POST /api/v1/references/bulk
func (h *ReferenceHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for bulk endpoint

	var req BulkReferenceRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	inputs := make([]service.ReferenceInput, 0, len(req.References))
	for _, ref := range req.References {
		inputs = append(inputs, ref.input())
	}

	records, err := h.service.BulkIndex(r.Context(), inputs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]int{"indexed": len(records)})
}

// Delete handles DELETE /api/v1/references/{id}
func (h *ReferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Suggest handles GET /api/v1/streets/suggest?q=&limit=
func (h *ReferenceHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > service.MaxSuggestLimit {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "INVALID_PARAMETER",
					Message: "limit must be a number between 1 and " + strconv.Itoa(service.MaxSuggestLimit),
				},
			})
			return
		}
		limit = n
	}

	names, err := h.service.Suggest(r.Context(), prefix, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]any{"suggestions": names})
}
