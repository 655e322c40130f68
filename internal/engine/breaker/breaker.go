// Package breaker guards a search engine with a circuit breaker so a failing
// cluster is reported as unavailable instead of being hammered by retries.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/engine"
	"github.com/postcodecheck/addresscleaner/internal/query"
	apperrors "github.com/postcodecheck/addresscleaner/pkg/errors"
)

// Config holds configuration for the circuit breaker.
type Config struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string

	// MaxRequests is the maximum number of requests allowed in the half-open state.
	// 0 means 1 request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing internal counts.
	// 0 means internal counts are never cleared during the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio is the ratio of failures to total requests that trips the breaker.
	FailureRatio float64

	// MinRequests is the minimum number of requests needed before the failure ratio is evaluated.
	MinRequests uint32
}

// DefaultConfig returns sensible defaults for a circuit breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var circuitBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func init() {
	prometheus.MustRegister(circuitBreakerState)
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Engine wraps a SearchEngine with circuit breaker protection. Reads and
// writes share one breaker since they fail together when the cluster is down.
type Engine struct {
	next    engine.SearchEngine
	breaker *gobreaker.CircuitBreaker[any]
	name    string
}

var _ engine.SearchEngine = (*Engine)(nil)

// New wraps next with a circuit breaker.
func New(next engine.SearchEngine, cfg Config, logger *slog.Logger) *Engine {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A caller giving up is not a sign of an unhealthy engine.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	circuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &Engine{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		name:    cfg.Name,
	}
}

// State returns the current state of the circuit breaker.
func (e *Engine) State() gobreaker.State {
	return e.breaker.State()
}

// Index adds or updates a record through the breaker.
func (e *Engine) Index(ctx context.Context, record *domain.ReferenceRecord) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.next.Index(ctx, record)
	})
	return e.wrap(err)
}

// BulkIndex adds or updates records through the breaker.
func (e *Engine) BulkIndex(ctx context.Context, records []domain.ReferenceRecord) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.next.BulkIndex(ctx, records)
	})
	return e.wrap(err)
}

// Delete removes a record through the breaker.
func (e *Engine) Delete(ctx context.Context, id string) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, e.next.Delete(ctx, id)
	})
	return e.wrap(err)
}

// Search runs q through the breaker.
func (e *Engine) Search(ctx context.Context, q *query.Bool, limit int) ([]domain.Candidate, error) {
	res, err := e.breaker.Execute(func() (any, error) {
		return e.next.Search(ctx, q, limit)
	})
	if err != nil {
		return nil, e.wrap(err)
	}
	candidates, _ := res.([]domain.Candidate)
	return candidates, nil
}

// Suggest returns street suggestions through the breaker.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	res, err := e.breaker.Execute(func() (any, error) {
		return e.next.Suggest(ctx, prefix, limit)
	})
	if err != nil {
		return nil, e.wrap(err)
	}
	names, _ := res.([]string)
	return names, nil
}

// wrap marks rejections by an open or saturated breaker as ErrServiceUnavail.
func (e *Engine) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("breaker %s: %w: %w", e.name, apperrors.ErrServiceUnavail, err)
	}
	return err
}
