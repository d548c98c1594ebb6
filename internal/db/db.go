package db

import (
	"context"
	"time"
)

// Querier is the read surface the query pipeline needs from one store
// connection: vector search, bulk record fetch, and a liveness ping.
type Querier interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Ping(ctx context.Context) error
}

// Conn is a dedicated connection checked out from a Pool. Release must run on
// every exit path and is safe to call more than once.
type Conn interface {
	Querier
	Release()
}

// Pool hands out dedicated connections with checkout/return semantics. The
// stateless endpoint checks out per call; a session holds one Conn for its
// whole lifetime.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
}

// KVStore provides plain key-value operations (used by the embedding cache).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store is the main database facade: shared multiplexed access plus dedicated
// checkout. Consumers depend on the narrow sub-interfaces above.
type Store interface {
	Querier
	Pool
	KVStore
	Scan(ctx context.Context, pattern string) ([]string, error)
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
