package search

import (
	"context"

	"github.com/openscripture/versevec/internal/db"
	"github.com/openscripture/versevec/internal/domain"
)

// Engine runs the similarity query against one store connection.
type Engine interface {
	TopK(ctx context.Context, q db.Querier, corpus string, vector []float32, k int) ([]domain.Hit, error)
}

// Hydrator loads verse records for ranked hits, preserving the id order it
// was given.
type Hydrator interface {
	Fetch(ctx context.Context, q db.Querier, corpus string, ids []int) ([]domain.Verse, error)
}

// CorpusRegistry answers which corpora are searchable right now.
type CorpusRegistry interface {
	IsSupported(ctx context.Context, id string) bool
	Snapshot(ctx context.Context) []string
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
