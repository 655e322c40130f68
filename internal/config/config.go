package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/postcodecheck/addresscleaner/pkg/config"
	"github.com/postcodecheck/addresscleaner/pkg/database"
	"github.com/postcodecheck/addresscleaner/pkg/tracing"
)

// Search engine names accepted by SEARCH_ENGINE.
const (
	EngineMemory        = "memory"
	EngineElasticsearch = "elasticsearch"
)

// Reference sources accepted by REFERENCE_SOURCE.
const (
	SourceNone     = "none"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all configuration of the address cleaner.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8090"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
	// Profiling endpoints are mounted only for these networks; empty disables them.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Resolution
	SearchEngine     string        `env:"SEARCH_ENGINE" envDefault:"memory"`
	SearchLimit      int           `env:"SEARCH_LIMIT" envDefault:"20"`
	SearchTimeout    time.Duration `env:"SEARCH_TIMEOUT" envDefault:"5s"`
	BatchConcurrency int           `env:"BATCH_CONCURRENCY" envDefault:"8"`
	MaxBatchSize     int           `env:"MAX_BATCH_SIZE" envDefault:"500"`
	SynonymsFile     string        `env:"SYNONYMS_FILE"`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"address_references"`

	// Circuit breaker around the search engine
	BreakerEnabled      bool          `env:"BREAKER_ENABLED" envDefault:"true"`
	BreakerMaxRequests  uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"3"`
	BreakerInterval     time.Duration `env:"BREAKER_INTERVAL" envDefault:"60s"`
	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Reference data loaded at startup
	ReferenceSource string `env:"REFERENCE_SOURCE" envDefault:"none"`
	ReferenceCSV    string `env:"REFERENCE_CSV"`

	// Postgres reference source
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"addresscleaner"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"addresscleaner"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"postcodes"`
	PostgresSSLMode  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMigrate  bool   `env:"POSTGRES_MIGRATE" envDefault:"false"`

	// Resolution cache
	CacheEnabled  bool          `env:"CACHE_ENABLED" envDefault:"false"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"100ms"`

	// Kafka reference events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"addresscleaner"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from envFiles (when present) and the environment.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, envFiles...); err != nil {
		return nil, fmt.Errorf("load addresscleaner config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.SearchEngine {
	case EngineMemory, EngineElasticsearch:
	default:
		return fmt.Errorf("invalid SEARCH_ENGINE %q: want memory or elasticsearch", c.SearchEngine)
	}
	if c.SearchEngine == EngineElasticsearch && c.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch engine")
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("invalid SEARCH_LIMIT: %d", c.SearchLimit)
	}
	if c.SearchTimeout < 0 {
		return fmt.Errorf("invalid SEARCH_TIMEOUT: %s", c.SearchTimeout)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("invalid BATCH_CONCURRENCY: %d", c.BatchConcurrency)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("invalid MAX_BATCH_SIZE: %d", c.MaxBatchSize)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("invalid rate limit: %g rps, burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("invalid BREAKER_FAILURE_RATIO: %g", c.BreakerFailureRatio)
	}
	switch c.ReferenceSource {
	case SourceNone, SourcePostgres:
	case SourceCSV:
		if c.ReferenceCSV == "" {
			return fmt.Errorf("REFERENCE_CSV is required when REFERENCE_SOURCE=csv")
		}
	default:
		return fmt.Errorf("invalid REFERENCE_SOURCE %q: want none, csv or postgres", c.ReferenceSource)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("invalid TRACING_SAMPLE_RATE: %g", c.TracingSampleRate)
	}
	return nil
}

// Postgres returns the connection settings of the reference database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return pg
}

// Redis returns the connection settings of the resolution cache.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Timeout:  c.RedisTimeout,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Enabled = c.TracingEnabled
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTLPEndpoint
	tc.SampleRate = c.TracingSampleRate
	return tc
}
