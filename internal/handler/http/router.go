package http

import (
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/health"
	"github.com/postcodecheck/addresscleaner/pkg/httputil"
	"github.com/postcodecheck/addresscleaner/pkg/middleware"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	MaxBatchSize   int
	CORS           middleware.CORSConfig
	// RateLimiter guards the resolve routes when set.
	RateLimiter *middleware.RateLimiter
	// PprofCIDRs lists the networks allowed to reach /debug/pprof.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all address service routes registered.
func NewRouter(
	cfg RouterConfig,
	resolver *service.Resolver,
	references *service.ReferenceService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	addressHandler := NewAddressHandler(resolver, cfg.MaxBatchSize, logger)
	referenceHandler := NewReferenceHandler(references, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/addresses", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}
			r.Post("/resolve", addressHandler.Resolve)
			r.Post("/resolve/batch", addressHandler.ResolveBatch)
			r.Post("/explain", addressHandler.Explain)
			r.Post("/normalize", addressHandler.Normalize)
		})

		r.Get("/streets/suggest", referenceHandler.Suggest)

		r.Route("/references", func(r chi.Router) {
			r.With(ContentTypeJSON).Post("/", referenceHandler.Upsert)
			r.With(ContentTypeJSON).Post("/bulk", referenceHandler.BulkIndex)
			r.Delete("/{id}", referenceHandler.Delete)
		})
	})

	return r
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
