package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/openscripture/versevec/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const defaultMaxSessions = 64

// Config holds connection parameters for a Redis/Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// MaxSessions bounds concurrently checked-out dedicated connections.
	MaxSessions int
}

// Store implements db.Store via rueidis. The embedded ops run on the shared
// multiplexed client; Acquire checks out a dedicated connection for session
// use, bounded by a semaphore.
type Store struct {
	ops
	client rueidis.Client
	sem    chan struct{}
}

// NewStore creates a store via rueidis. Works against Redis 8+ and Valkey.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}

	return &Store{
		ops:    ops{core: client},
		client: client,
		sem:    make(chan struct{}, maxSessions),
	}, nil
}

// Acquire checks out a dedicated connection. It blocks while the pool is at
// capacity until a slot frees or ctx is done.
func (s *Store) Acquire(ctx context.Context) (db.Conn, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire connection: %w", ctx.Err())
	}

	dc, cancel := s.client.Dedicate()
	conn := &session{ops: ops{core: dc}}
	conn.release = func() {
		cancel()
		<-s.sem
	}
	return conn, nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// session is a dedicated connection checked out from the Store.
type session struct {
	ops
	release  func()
	released sync.Once
}

var _ db.Conn = (*session)(nil)

// Release returns the connection to the pool. Safe to call more than once;
// the slot is freed exactly once.
func (c *session) Release() {
	c.released.Do(c.release)
}
