package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/postcodecheck/addresscleaner/internal/cache"
	"github.com/postcodecheck/addresscleaner/internal/config"
	"github.com/postcodecheck/addresscleaner/internal/event"
	handler "github.com/postcodecheck/addresscleaner/internal/handler/http"
	"github.com/postcodecheck/addresscleaner/internal/ingest"
	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/database"
	"github.com/postcodecheck/addresscleaner/pkg/health"
	pkgkafka "github.com/postcodecheck/addresscleaner/pkg/kafka"
	"github.com/postcodecheck/addresscleaner/pkg/middleware"
	"github.com/postcodecheck/addresscleaner/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics and traces.
const ServiceName = "addresscleaner"

// App wires together all dependencies and runs the address cleaner.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	references     *service.ReferenceService
	source         service.ReferenceSource
	consumers      []*pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	rateLimiter    *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeStores()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.Tracing(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	eng, err := NewSearchEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	normalizer, err := NewNormalizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	resolver := service.NewResolver(normalizer, eng, ResolverConfig(cfg), logger)
	a.references = service.NewReferenceService(eng, logger)

	// Resolution cache.
	var resolutionCache *cache.ResolutionCache
	if cfg.CacheEnabled {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		resolutionCache = cache.NewResolutionCache(a.redis, cfg.CacheTTL)
		resolver.WithCache(resolutionCache)
		a.references.WithCacheInvalidation(resolutionCache)
		logger.Info("resolution cache enabled",
			slog.String("addr", cfg.Redis().Addr()),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}

	// Reference store and startup source.
	switch cfg.ReferenceSource {
	case config.SourcePostgres:
		if err := a.connectPostgres(ctx); err != nil {
			return nil, err
		}
	case config.SourceCSV:
		a.source = ingest.NewCSVFile(cfg.ReferenceCSV)
	}

	// Kafka consumers for reference events.
	if cfg.KafkaEnabled {
		a.initConsumers()
	}

	// Health checks.
	healthHandler := health.NewHandler()
	if eng.Ping != nil {
		healthHandler.Register("elasticsearch", eng.Ping)
	}
	if a.pool != nil {
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return a.pool.Ping(ctx)
		})
	}
	if resolutionCache != nil {
		healthHandler.RegisterOptional("redis", resolutionCache.Ping)
	}
	if cfg.KafkaEnabled {
		healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:    ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		MaxBatchSize:   cfg.MaxBatchSize,
		CORS:           cors,
		RateLimiter:    a.rateLimiter,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
	}, resolver, a.references, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// connectPostgres opens the reference database, migrates it when asked and
// makes it the write-through store and startup source of the corpus.
func (a *App) connectPostgres(ctx context.Context) error {
	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if a.cfg.PostgresMigrate {
		if err := database.RunMigrations(ctx, pool, ingest.Migrations(), a.logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")
	}

	store := ingest.NewPostgresSource(pool, database.QueryTracer{
		SlowThreshold: 200 * time.Millisecond,
		Logger:        a.logger,
	})
	a.references.WithStore(store)
	a.source = store
	return nil
}

func (a *App) initConsumers() {
	eventConsumer := event.NewConsumer(a.references, a.logger)
	idempotencyStore := pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	handle := pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.Handle, a.logger)
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)

	for _, topic := range event.Topics {
		c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  a.cfg.KafkaBrokers,
			GroupID:  a.cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}, handle, a.logger).WithDLQ(a.dlq)
		a.consumers = append(a.consumers, c)
	}
	a.logger.Info("kafka consumers initialized",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.Int("topic_count", len(event.Topics)),
	)
}

// Run loads the reference corpus, starts the HTTP server and Kafka consumers,
// and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if a.source != nil {
		n, err := a.references.Import(ctx, a.source)
		if err != nil {
			_ = a.Shutdown()
			return fmt.Errorf("load reference corpus: %w", err)
		}
		a.logger.Info("reference corpus loaded",
			slog.String("source", a.source.Name()),
			slog.Int("records", n),
		)
	}

	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// HTTP server, tracer, Kafka consumers, then the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	// Flush pending spans after the HTTP drain so request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.closeStores()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
