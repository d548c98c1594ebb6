package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/openscripture/versevec/internal/db"
)

// ops implements the command surface shared by the multiplexed store client
// and dedicated session connections. rueidis exposes both through CoreClient.
type ops struct {
	core rueidis.CoreClient
}

func (o ops) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return o.core.Do(ctx, cmd)
}

func (o ops) b() rueidis.Builder {
	return o.core.B()
}

// Ping checks connectivity of this connection.
func (o ops) Ping(ctx context.Context) error {
	if err := o.do(ctx, o.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Get retrieves a value by key.
func (o ops) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := o.b().Get().Key(key).Build()
	data, err := o.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration.
func (o ops) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := o.b().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := o.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// HGetAllMulti fetches all fields for multiple hashes in a single DoMulti
// round-trip. The result slice is position-aligned with keys; a missing hash
// yields an empty map.
func (o ops) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = o.b().Hgetall().Key(key).Build()
	}

	results := o.core.DoMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))

	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}

	return out, nil
}

// Scan iterates keys matching a pattern.
func (o ops) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := o.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := o.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
