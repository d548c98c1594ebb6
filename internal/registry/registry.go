// Package registry maintains the set of corpora the service may search.
// The set is discovered from the store, intersected with a configured
// allow-list, and cached with a TTL. A failed refresh keeps serving the
// previous snapshot; a cold start with an unreachable store serves a
// static fallback.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/domain"
)

// Lister is the store surface the registry needs.
type Lister interface {
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Config holds registry settings.
type Config struct {
	TTL       time.Duration
	AllowList []string
	Fallback  []string
}

const corpusKeyPrefix = domain.KeyPrefix + "corpus:"

type snapshot struct {
	corpora map[string]struct{}
	sorted  []string
	fetched time.Time
}

// Registry caches the searchable corpus set.
type Registry struct {
	store   Lister
	cfg     Config
	logger  *zap.Logger
	allowed map[string]struct{}

	current atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes refresh
}

// New creates a corpus registry. No store call happens until the first
// Snapshot or IsSupported.
func New(store Lister, cfg Config, logger *zap.Logger) *Registry {
	allowed := make(map[string]struct{}, len(cfg.AllowList))
	for _, id := range cfg.AllowList {
		allowed[id] = struct{}{}
	}
	return &Registry{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		allowed: allowed,
	}
}

// Snapshot returns the current corpus list, sorted, refreshing it first if
// the cached one is older than the TTL.
func (r *Registry) Snapshot(ctx context.Context) []string {
	snap := r.fresh(ctx)
	return snap.sorted
}

// IsSupported reports whether id names a searchable corpus.
func (r *Registry) IsSupported(ctx context.Context, id string) bool {
	snap := r.fresh(ctx)
	_, ok := snap.corpora[id]
	return ok
}

func (r *Registry) fresh(ctx context.Context) *snapshot {
	if snap := r.current.Load(); snap != nil && time.Since(snap.fetched) < r.cfg.TTL {
		return snap
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if snap := r.current.Load(); snap != nil && time.Since(snap.fetched) < r.cfg.TTL {
		return snap
	}

	keys, err := r.store.Scan(ctx, corpusKeyPrefix+"*")
	if err != nil {
		if prev := r.current.Load(); prev != nil {
			// Keep serving the stale set. Re-stamp it so the next TTL
			// window passes before we hit the store again.
			r.logger.Warn("corpus refresh failed, serving stale snapshot",
				zap.Error(err),
				zap.Time("fetched", prev.fetched))
			stale := &snapshot{corpora: prev.corpora, sorted: prev.sorted, fetched: time.Now()}
			r.current.Store(stale)
			return stale
		}
		r.logger.Warn("corpus discovery unavailable at startup, serving fallback",
			zap.Error(err),
			zap.Strings("fallback", r.cfg.Fallback))
		fb := r.buildSnapshot(r.cfg.Fallback)
		r.current.Store(fb)
		return fb
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, corpusKeyPrefix)
		if id == key || !domain.ValidCorpusID(id) {
			continue
		}
		ids = append(ids, id)
	}

	snap := r.buildSnapshot(ids)
	r.current.Store(snap)
	r.logger.Debug("corpus registry refreshed", zap.Strings("corpora", snap.sorted))
	return snap
}

// buildSnapshot intersects ids with the allow-list and sorts the result.
func (r *Registry) buildSnapshot(ids []string) *snapshot {
	corpora := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := r.allowed[id]; !ok {
			continue
		}
		corpora[id] = struct{}{}
	}
	sorted := make([]string, 0, len(corpora))
	for id := range corpora {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	return &snapshot{corpora: corpora, sorted: sorted, fetched: time.Now()}
}
