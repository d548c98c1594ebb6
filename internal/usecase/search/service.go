// Package search is the single similarity pipeline behind every transport.
// The stateless endpoint and session transport share one code path that
// differs only in where the store connection comes from.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/db"
	"github.com/openscripture/versevec/internal/domain"
	"github.com/openscripture/versevec/internal/metrics"
)

// Service handles semantic verse search.
type Service struct {
	pool     db.Pool
	registry CorpusRegistry
	embed    Embedder
	engine   Engine
	hydrate  Hydrator
	logger   *zap.Logger
}

// New creates a search service.
func New(
	pool db.Pool,
	registry CorpusRegistry,
	embed Embedder,
	engine Engine,
	hydrate Hydrator,
	logger *zap.Logger,
) *Service {
	return &Service{
		pool:     pool,
		registry: registry,
		embed:    embed,
		engine:   engine,
		hydrate:  hydrate,
		logger:   logger,
	}
}

// Search runs one search on a pooled connection. The connection is checked
// out after validation and returned before the call ends.
func (s *Service) Search(ctx context.Context, req *domain.SearchRequest) ([]domain.Verse, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	if emptyQuery(req.Query) {
		return []domain.Verse{}, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire store connection: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer conn.Release()

	return s.run(ctx, conn, req)
}

// SearchOn runs one search on a caller-held connection. Sessions pin one
// dedicated connection for their whole lifetime and pass it here per message.
func (s *Service) SearchOn(ctx context.Context, conn db.Querier, req *domain.SearchRequest) ([]domain.Verse, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	if emptyQuery(req.Query) {
		return []domain.Verse{}, nil
	}
	return s.run(ctx, conn, req)
}

// emptyQuery reports whether the query has no searchable content. Such a
// query answers an empty result without touching the encoder or the store.
func emptyQuery(q string) bool {
	return strings.TrimSpace(q) == ""
}

// validate enforces request bounds and corpus membership. The corpus check
// happens here, before any key or index name is built from the id.
func (s *Service) validate(ctx context.Context, req *domain.SearchRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if !s.registry.IsSupported(ctx, req.Corpus) {
		return fmt.Errorf("corpus %q: %w", req.Corpus, domain.ErrCorpusNotSupported)
	}
	return nil
}

func (s *Service) run(ctx context.Context, conn db.Querier, req *domain.SearchRequest) ([]domain.Verse, error) {
	start := time.Now()

	verses, err := s.pipeline(ctx, conn, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues(req.Corpus, status).Inc()
	metrics.SearchDuration.WithLabelValues(req.Corpus).Observe(time.Since(start).Seconds())

	return verses, err
}

func (s *Service) pipeline(ctx context.Context, conn db.Querier, req *domain.SearchRequest) ([]domain.Verse, error) {
	embResult, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.engine.TopK(ctx, conn, req.Corpus, embResult.Embedding, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	ranked := rank(hits, req.Threshold, req.Limit)
	if len(ranked) == 0 {
		return []domain.Verse{}, nil
	}

	ids := make([]int, len(ranked))
	for i, h := range ranked {
		ids[i] = h.VerseID
	}

	verses, err := s.hydrate.Fetch(ctx, conn, req.Corpus, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate verses: %w", err)
	}

	s.logger.Debug("search complete",
		zap.String("corpus", req.Corpus),
		zap.Int("hits", len(hits)),
		zap.Int("returned", len(verses)),
		zap.Int("tokens", embResult.TotalTokens))

	return verses, nil
}

// rank drops hits below the threshold, orders the rest by score descending
// (verse id ascending on ties, so equal scores rank deterministically), and
// caps the count at limit.
func rank(hits []domain.Hit, threshold float64, limit int) []domain.Hit {
	ranked := make([]domain.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			ranked = append(ranked, h)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].VerseID < ranked[j].VerseID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
