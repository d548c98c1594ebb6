package redis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/openscripture/versevec/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- kv tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("got %q, want %q", data, "value")
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "value", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("value"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- hash tests ---

func TestHGetAllMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("HGETALL", "k1"), mock.Match("HGETALL", "k2")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
				"book": mock.RedisString("John"),
			})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
		})

	s := NewStoreForTest(c)
	rows, err := s.HGetAllMulti(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["book"] != "John" {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if len(rows[1]) != 0 {
		t.Errorf("expected empty map for missing hash, got %v", rows[1])
	}
}

func TestHGetAllMulti_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	s := NewStoreForTest(c)
	rows, err := s.HGetAllMulti(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != nil {
		t.Errorf("expected nil for empty keys, got %v", rows)
	}
}

// --- scan tests ---

func TestScan_SinglePage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("versevec:corpus:kjv"), mock.RedisString("versevec:corpus:web")),
		)))

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "versevec:corpus:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

func TestScan_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42),
					mock.RedisArray(mock.RedisString("key1")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("key2")),
			))
		}).Times(2)

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "prefix:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

// --- search.go tests ---

func knnReply(pairs ...rueidis.RedisMessage) rueidis.RedisResult {
	msgs := append([]rueidis.RedisMessage{mock.RedisInt64(int64(len(pairs) / 2))}, pairs...)
	return mock.Result(mock.RedisArray(msgs...))
}

func scoreFields(dist string) rueidis.RedisMessage {
	return mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString(dist))
}

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "versevec:kjv:idx" &&
				cmd[2] == "*=>[KNN 10 @__vector $BLOB]"
		})).
		Return(knnReply(
			mock.RedisString("versevec:kjv:verse:42"), scoreFields("0.1"),
			mock.RedisString("versevec:kjv:verse:7"), scoreFields("0.35"),
		))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "versevec:kjv:idx",
		Vector:    []float32{0.1, 0.2, 0.3},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("got total=%d entries=%d", res.Total, len(res.Entries))
	}
	if res.Entries[0].Key != "versevec:kjv:verse:42" {
		t.Errorf("entry key = %q", res.Entries[0].Key)
	}
	if math.Abs(res.Entries[0].Score-0.9) > 1e-9 {
		t.Errorf("score = %g, want 0.9", res.Entries[0].Score)
	}
	if math.Abs(res.Entries[1].Score-0.65) > 1e-9 {
		t.Errorf("score = %g, want 0.65", res.Entries[1].Score)
	}
}

func TestSearchKNN_EmptyIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "versevec:kjv:idx",
		Vector:    []float32{0.1},
		K:         5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.ErrorResult(errors.New("no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "versevec:xyz:idx",
		Vector:    []float32{0.1},
		K:         5,
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected *db.Error, got %v", err)
	}
	if dbErr.Op != db.OpSearch {
		t.Errorf("op = %q", dbErr.Op)
	}
}

func TestSearchKNN_DropsEntriesWithoutScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(knnReply(
			mock.RedisString("versevec:kjv:verse:1"), scoreFields("0.2"),
			mock.RedisString("versevec:kjv:verse:2"), mock.RedisArray(),
			mock.RedisString("versevec:kjv:verse:3"), scoreFields("not-a-number"),
		))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "versevec:kjv:idx",
		Vector:    []float32{0.1},
		K:         5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Hits with a missing or unparseable score field carry no similarity
	// and must not surface with a fabricated score of zero.
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].Key != "versevec:kjv:verse:1" {
		t.Errorf("entry key = %q", res.Entries[0].Key)
	}
	if math.Abs(res.Entries[0].Score-0.8) > 1e-9 {
		t.Errorf("score = %g, want 0.8", res.Entries[0].Score)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	s := NewStoreForTest(c)

	ctx := context.Background()
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{1}, K: 1}); err == nil {
		t.Error("expected error for missing index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "i", K: 1}); err == nil {
		t.Error("expected error for missing vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "i", Vector: []float32{1}}); err == nil {
		t.Error("expected error for non-positive k")
	}
}

// --- session tests ---

func TestAcquire_DedicatesAndReleasesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	dc := mock.NewDedicatedClient(ctrl)

	cancelled := 0
	c.EXPECT().Dedicate().Return(dc, func() { cancelled++ })
	dc.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	conn, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.sem) != 1 {
		t.Fatalf("expected 1 slot in use, got %d", len(s.sem))
	}

	// Session commands run on the dedicated connection.
	if err := conn.Ping(context.Background()); err != nil {
		t.Fatalf("session ping: %v", err)
	}

	conn.Release()
	conn.Release() // second release is a no-op
	if cancelled != 1 {
		t.Errorf("dedicated connection cancelled %d times, want 1", cancelled)
	}
	if len(s.sem) != 0 {
		t.Errorf("expected all slots free, got %d in use", len(s.sem))
	}
}

func TestAcquire_RespectsContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	s := NewStoreForTest(c)
	s.sem = make(chan struct{}, 1)
	s.sem <- struct{}{} // pool exhausted

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
