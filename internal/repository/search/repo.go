// Package search translates similarity queries into store vector searches.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/db"
	"github.com/openscripture/versevec/internal/domain"
	"github.com/openscripture/versevec/internal/logger"
)

// Repo implements usecase/search.Engine. The store connection is passed per
// call so the same repo serves pooled and session-held connections.
type Repo struct{}

// New creates a search repository.
func New() *Repo {
	return &Repo{}
}

// TopK runs a KNN search for vector on the corpus index and returns hits in
// store order (nearest first). Entries whose keys do not parse as verse keys
// are skipped.
func (r *Repo) TopK(
	ctx context.Context, q db.Querier,
	corpus string, vector []float32, k int,
) ([]domain.Hit, error) {
	indexName := fmt.Sprintf("%s%s:idx", domain.KeyPrefix, corpus)

	sr, err := q.SearchKNN(ctx, &db.KNNQuery{
		IndexName: indexName,
		Vector:    vector,
		K:         k,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", corpus, err)
	}

	return parseHits(ctx, sr, corpus), nil
}

// parseHits converts db.SearchResult entries into verse hits.
func parseHits(ctx context.Context, sr *db.SearchResult, corpus string) []domain.Hit {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := fmt.Sprintf("%s%s:verse:", domain.KeyPrefix, corpus)
	hits := make([]domain.Hit, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		idStr := strings.TrimPrefix(entry.Key, prefix)
		id, err := strconv.Atoi(idStr)
		if idStr == entry.Key || err != nil {
			logger.FromContext(ctx).Warn("skipping malformed search hit",
				zap.String("key", entry.Key),
				zap.String("corpus", corpus))
			continue
		}
		hits = append(hits, domain.Hit{VerseID: id, Score: entry.Score})
	}

	return hits
}
