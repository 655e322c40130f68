package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/engine"
	"github.com/postcodecheck/addresscleaner/internal/normalize"
	"github.com/postcodecheck/addresscleaner/internal/query"
	"github.com/postcodecheck/addresscleaner/internal/rank"
	apperrors "github.com/postcodecheck/addresscleaner/pkg/errors"
	"github.com/postcodecheck/addresscleaner/pkg/logger"
	"github.com/postcodecheck/addresscleaner/pkg/tracing"
)

const searchCollaborator = "search engine"

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_resolutions_total",
			Help: "Total number of address resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	resolutionCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "address_resolution_candidates",
			Help:    "Number of candidates considered after the score decay cutoff.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)
)

// ResolutionCache stores finished resolutions keyed by the normalized address.
// A cache failure never fails a resolution.
type ResolutionCache interface {
	Get(ctx context.Context, normalized domain.Address) (domain.Resolution, bool, error)
	Set(ctx context.Context, normalized domain.Address, res domain.Resolution) error
}

// ResolverConfig tunes the resolver.
type ResolverConfig struct {
	// SearchLimit bounds the number of candidates retrieved per query.
	SearchLimit int
	// SearchTimeout bounds the engine call only. Zero disables it.
	SearchTimeout time.Duration
	// BatchConcurrency bounds the number of parallel resolutions in a batch.
	BatchConcurrency int
}

// DefaultResolverConfig returns the settings used when none are configured.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SearchLimit:      20,
		SearchTimeout:    5 * time.Second,
		BatchConcurrency: 8,
	}
}

// Resolver turns free-form addresses into reference-backed ones.
// It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	normalizer *normalize.Normalizer
	engine     engine.SearchEngine
	cache      ResolutionCache
	cfg        ResolverConfig
	logger     *slog.Logger
}

// NewResolver creates a resolver searching eng.
func NewResolver(n *normalize.Normalizer, eng engine.SearchEngine, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	def := DefaultResolverConfig()
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}
	return &Resolver{
		normalizer: n,
		engine:     eng,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithCache enables the resolution cache.
func (r *Resolver) WithCache(c ResolutionCache) *Resolver {
	r.cache = c
	return r
}

// Normalize returns the normalized form of addr.
func (r *Resolver) Normalize(addr domain.Address) domain.Address {
	return r.normalizer.Normalize(addr)
}

// Resolve matches addr against the reference corpus. An address without an
// acceptable candidate yields an unmatched resolution, not an error; only a
// failing search engine is an error.
func (r *Resolver) Resolve(ctx context.Context, addr domain.Address) (domain.Resolution, error) {
	q := r.normalizer.Normalize(addr)

	if res, ok := r.cached(ctx, q); ok {
		return res, nil
	}

	candidates, err := r.search(ctx, q)
	if err != nil {
		resolutionsTotal.WithLabelValues("error").Inc()
		return domain.Resolution{}, err
	}

	sel := rank.Select(q, candidates)
	res := finalize(q, sel)
	resolutionCandidates.Observe(float64(sel.Considered))

	if res.Matched {
		resolutionsTotal.WithLabelValues("matched").Inc()
	} else {
		resolutionsTotal.WithLabelValues("unmatched").Inc()
	}

	logger.WithContext(ctx, r.logger).DebugContext(ctx, "address resolved",
		slog.Bool("matched", res.Matched),
		slog.String("street", q.Street),
		slog.String("city", q.City),
		slog.String("postcode", q.Postcode),
		slog.Int("retrieved", len(candidates)),
		slog.Int("considered", sel.Considered),
		slog.Int("distance", sel.Distance),
		slog.String("record_id", res.Record.ID),
	)

	r.store(ctx, q, res)
	return res, nil
}

// ResolveBatch resolves addrs with bounded concurrency. Results keep the input
// order. The first engine failure cancels the remaining work and is returned.
func (r *Resolver) ResolveBatch(ctx context.Context, addrs []domain.Address) ([]domain.Resolution, error) {
	out := make([]domain.Resolution, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchConcurrency)
	for i := range addrs {
		g.Go(func() error {
			res, err := r.Resolve(gctx, addrs[i])
			if err != nil {
				return fmt.Errorf("resolve batch item %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matched := 0
	for _, res := range out {
		if res.Matched {
			matched++
		}
	}
	logger.WithContext(ctx, r.logger).InfoContext(ctx, "batch resolved",
		slog.Int("count", len(out)),
		slog.Int("matched", matched),
	)
	return out, nil
}

// ExplainedCandidate is one retrieved candidate with its similarity distance.
type ExplainedCandidate struct {
	Record     domain.ReferenceRecord `json:"record"`
	Score      float64                `json:"score"`
	Distance   int                    `json:"distance"`
	Considered bool                   `json:"considered"`
}

// Explanation shows how a resolution was reached.
type Explanation struct {
	Input      domain.Address       `json:"input"`
	Normalized domain.Address       `json:"normalized"`
	Query      string               `json:"query"`
	Candidates []ExplainedCandidate `json:"candidates"`
	Cutoff     float64              `json:"cutoff"`
	Winner     int                  `json:"winner"`
	Resolution domain.Resolution    `json:"resolution"`
}

// Explain resolves addr like Resolve, bypassing the cache, and reports every
// retrieved candidate. Winner is the index of the chosen candidate or -1.
func (r *Resolver) Explain(ctx context.Context, addr domain.Address) (*Explanation, error) {
	q := r.normalizer.Normalize(addr)

	candidates, err := r.search(ctx, q)
	if err != nil {
		return nil, err
	}

	sel := rank.Select(q, candidates)
	exp := &Explanation{
		Input:      addr,
		Normalized: q,
		Query:      query.Build(q).String(),
		Candidates: make([]ExplainedCandidate, 0, len(candidates)),
		Cutoff:     sel.Cutoff,
		Winner:     sel.Index,
		Resolution: finalize(q, sel),
	}
	for i, c := range candidates {
		exp.Candidates = append(exp.Candidates, ExplainedCandidate{
			Record:     c.Record,
			Score:      c.Score,
			Distance:   rank.Distance(q, c.Record),
			Considered: i < sel.Considered,
		})
	}
	return exp, nil
}

// search runs the single engine call of a resolution under the search timeout.
func (r *Resolver) search(ctx context.Context, q domain.Address) ([]domain.Candidate, error) {
	ctx, span := tracing.Tracer().Start(ctx, "resolver.search")
	defer span.End()

	if r.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SearchTimeout)
		defer cancel()
	}

	candidates, err := r.engine.Search(ctx, query.Build(q), r.cfg.SearchLimit)
	if err != nil {
		tracing.SpanError(span, err)
		return nil, apperrors.Unavailable(searchCollaborator, fmt.Errorf("search: %w", err))
	}
	span.SetAttributes(attribute.Int("resolver.candidates", len(candidates)))
	return candidates, nil
}

func (r *Resolver) cached(ctx context.Context, q domain.Address) (domain.Resolution, bool) {
	if r.cache == nil {
		return domain.Resolution{}, false
	}
	res, ok, err := r.cache.Get(ctx, q)
	if err != nil {
		logger.WithContext(ctx, r.logger).WarnContext(ctx, "resolution cache read failed",
			slog.String("error", err.Error()),
		)
		return domain.Resolution{}, false
	}
	return res, ok
}

func (r *Resolver) store(ctx context.Context, q domain.Address, res domain.Resolution) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, q, res); err != nil {
		logger.WithContext(ctx, r.logger).WarnContext(ctx, "resolution cache write failed",
			slog.String("error", err.Error()),
		)
	}
}

// finalize turns a ranking selection into a resolution. The reference record
// supplies the geography; the query supplies the house number, affix and
// description. Without a house number the postcode is dropped, since it may
// differ along the street.
func finalize(q domain.Address, sel rank.Selection) domain.Resolution {
	res := domain.Resolution{
		Query:      q,
		Considered: sel.Considered,
	}
	if !sel.Found {
		return res
	}

	out := sel.Winner.Record.Address()
	out.HouseNumber = q.HouseNumber
	out.HouseNumberAffix = q.HouseNumberAffix
	out.Description = q.Description

	if out.HouseNumber == "" {
		if number, affix, ok := normalize.FillHouseNumberFromDescription(out.Street, out.Description); ok {
			out.HouseNumber = number
			if affix != "" {
				out.HouseNumberAffix = affix
			}
		} else {
			out.Postcode = ""
		}
	}

	res.Matched = true
	res.Address = out
	res.Record = sel.Winner.Record
	res.Score = sel.Winner.Score
	res.Distance = sel.Distance
	return res
}
