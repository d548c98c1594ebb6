package search

import (
	"context"
	"errors"
	"testing"

	"github.com/openscripture/versevec/internal/db"
)

type fakeQuerier struct {
	lastQuery *db.KNNQuery
	result    *db.SearchResult
	err       error
}

func (f *fakeQuerier) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.lastQuery = q
	return f.result, f.err
}

func (f *fakeQuerier) HGetAllMulti(context.Context, []string) ([]map[string]string, error) {
	return nil, nil
}

func (f *fakeQuerier) Ping(context.Context) error { return nil }

func TestTopK_BuildsIndexNameAndParsesHits(t *testing.T) {
	q := &fakeQuerier{result: &db.SearchResult{
		Total: 3,
		Entries: []db.SearchEntry{
			{Key: "versevec:kjv:verse:42", Score: 0.91},
			{Key: "versevec:kjv:verse:7", Score: 0.85},
			{Key: "versevec:kjv:garbage", Score: 0.5}, // malformed, skipped
		},
	}}

	hits, err := New().TopK(context.Background(), q, "kjv", []float32{0.1, 0.2}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.lastQuery.IndexName != "versevec:kjv:idx" {
		t.Errorf("index name = %q", q.lastQuery.IndexName)
	}
	if q.lastQuery.K != 10 {
		t.Errorf("k = %d", q.lastQuery.K)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].VerseID != 42 || hits[0].Score != 0.91 {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[1].VerseID != 7 || hits[1].Score != 0.85 {
		t.Errorf("hits[1] = %+v", hits[1])
	}
}

func TestTopK_EmptyResult(t *testing.T) {
	q := &fakeQuerier{result: &db.SearchResult{Total: 0}}

	hits, err := New().TopK(context.Background(), q, "kjv", []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestTopK_StoreError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("no such index")}

	_, err := New().TopK(context.Background(), q, "kjv", []float32{0.1}, 5)
	if err == nil {
		t.Fatal("expected error")
	}
}
