package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/service"
	apperrors "github.com/postcodecheck/addresscleaner/pkg/errors"
	"github.com/postcodecheck/addresscleaner/pkg/httputil"
	"github.com/postcodecheck/addresscleaner/pkg/validator"
)

// DefaultMaxBatchSize bounds the number of addresses per batch request.
const DefaultMaxBatchSize = 500

// AddressHandler handles HTTP requests for address resolution endpoints.
type AddressHandler struct {
	resolver     *service.Resolver
	maxBatchSize int
	logger       *slog.Logger
}

// NewAddressHandler creates a new address HTTP handler.
func NewAddressHandler(resolver *service.Resolver, maxBatchSize int, logger *slog.Logger) *AddressHandler {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &AddressHandler{
		resolver:     resolver,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// --- Request DTOs ---

// AddressRequest is a structured address. Every field is optional but at
// least one must be present.
type AddressRequest struct {
	Postcode         string `json:"postcode" validate:"max=10"`
	City             string `json:"city" validate:"max=100"`
	Municipality     string `json:"municipality" validate:"max=100"`
	Street           string `json:"street" validate:"max=200"`
	HouseNumber      string `json:"house_number" validate:"max=20"`
	HouseNumberAffix string `json:"house_number_affix" validate:"max=20"`
	Description      string `json:"description" validate:"required_without_all=Postcode City Municipality Street HouseNumber,max=500"`
}

func (r AddressRequest) address() domain.Address {
	return domain.Address{
		Postcode:         r.Postcode,
		City:             r.City,
		Municipality:     r.Municipality,
		Street:           r.Street,
		HouseNumber:      r.HouseNumber,
		HouseNumberAffix: r.HouseNumberAffix,
		Description:      r.Description,
	}
}

// BatchRequest is the JSON request body for resolving many addresses.
type BatchRequest struct {
	Addresses []AddressRequest `json:"addresses" validate:"required,min=1,dive"`
}

// BatchResponse lists resolutions in request order.
type BatchResponse struct {
	Results []domain.Resolution `json:"results"`
	Matched int                 `json:"matched"`
	Total   int                 `json:"total"`
}

// --- Handlers ---

// Resolve handles POST /api/v1/addresses/resolve
func (h *AddressHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req AddressRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req.address())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// ResolveBatch handles POST /api/v1/addresses/resolve/batch
func (h *AddressHandler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for batch endpoint

	var req BatchRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if len(req.Addresses) > h.maxBatchSize {
		httputil.WriteError(w, r, apperrors.InvalidInput(
			fmt.Sprintf("batch holds %d addresses, at most %d allowed", len(req.Addresses), h.maxBatchSize)), h.logger)
		return
	}

	addrs := make([]domain.Address, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		addrs = append(addrs, a.address())
	}

	results, err := h.resolver.ResolveBatch(r.Context(), addrs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := BatchResponse{Results: results, Total: len(results)}
	for _, res := range results {
		if res.Matched {
			resp.Matched++
		}
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// Explain handles POST /api/v1/addresses/explain
func (h *AddressHandler) Explain(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req AddressRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	exp, err := h.resolver.Explain(r.Context(), req.address())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, exp)
}

// Normalize handles POST /api/v1/addresses/normalize
func (h *AddressHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req AddressRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.resolver.Normalize(req.address()))
}
