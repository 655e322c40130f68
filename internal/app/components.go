package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/postcodecheck/addresscleaner/internal/config"
	"github.com/postcodecheck/addresscleaner/internal/engine"
	"github.com/postcodecheck/addresscleaner/internal/engine/breaker"
	esengine "github.com/postcodecheck/addresscleaner/internal/engine/elasticsearch"
	"github.com/postcodecheck/addresscleaner/internal/engine/memory"
	"github.com/postcodecheck/addresscleaner/internal/normalize"
	"github.com/postcodecheck/addresscleaner/internal/service"
)

// SearchEngine is the configured engine plus the health check of its backend.
// Ping is nil for the in-memory engine.
type SearchEngine struct {
	engine.SearchEngine
	Ping func(ctx context.Context) error
}

// NewSearchEngine builds the engine selected by SEARCH_ENGINE, wrapped in a
// circuit breaker when enabled.
func NewSearchEngine(cfg *config.Config, logger *slog.Logger) (*SearchEngine, error) {
	out := &SearchEngine{}

	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		esEng, err := esengine.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		out.SearchEngine = esEng
		out.Ping = esEng.Ping
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	default:
		out.SearchEngine = memory.New()
		logger.Info("in-memory search engine initialized")
	}

	if cfg.BreakerEnabled {
		bcfg := breaker.DefaultConfig(cfg.SearchEngine)
		bcfg.MaxRequests = cfg.BreakerMaxRequests
		bcfg.Interval = cfg.BreakerInterval
		bcfg.Timeout = cfg.BreakerTimeout
		bcfg.FailureRatio = cfg.BreakerFailureRatio
		bcfg.MinRequests = cfg.BreakerMinRequests
		out.SearchEngine = breaker.New(out.SearchEngine, bcfg, logger)
	}
	return out, nil
}

// NewNormalizer loads SYNONYMS_FILE, falling back to the built-in table.
func NewNormalizer(cfg *config.Config, logger *slog.Logger) (*normalize.Normalizer, error) {
	if cfg.SynonymsFile == "" {
		return normalize.NewNormalizer(normalize.DefaultSynonymTable()), nil
	}
	table, err := normalize.LoadSynonymTable(cfg.SynonymsFile)
	if err != nil {
		return nil, fmt.Errorf("load synonyms: %w", err)
	}
	logger.Info("synonym table loaded",
		slog.String("path", cfg.SynonymsFile),
		slog.Int("entries", table.Len()),
	)
	return normalize.NewNormalizer(table), nil
}

// ResolverConfig maps the resolution settings onto the service config.
func ResolverConfig(cfg *config.Config) service.ResolverConfig {
	return service.ResolverConfig{
		SearchLimit:      cfg.SearchLimit,
		SearchTimeout:    cfg.SearchTimeout,
		BatchConcurrency: cfg.BatchConcurrency,
	}
}
