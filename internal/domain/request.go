package domain

import (
	"encoding/json"
	"fmt"
)

// Request bounds and defaults shared by both transports.
const (
	DefaultThreshold = 0.6
	DefaultLimit     = 10
	MaxLimit         = 100
)

// SearchRequest is one semantic search invocation. It is built per incoming
// message or request and discarded once the response is produced.
type SearchRequest struct {
	Query     string
	Threshold float64
	Corpus    string
	Limit     int
}

// searchRequestWire is the JSON shape both transports accept. Pointers
// distinguish absent fields from explicit zeroes so defaults apply only when
// a field is missing.
type searchRequestWire struct {
	Query     string   `json:"query"`
	Threshold *float64 `json:"threshold"`
	Corpus    *string  `json:"bible_version"`
	Limit     *int     `json:"max_results"`
}

// UnmarshalJSON decodes the wire shape and applies defaults for absent
// threshold and limit. An absent corpus stays empty; the transport fills in
// its configured default before validation.
func (r *SearchRequest) UnmarshalJSON(data []byte) error {
	var w searchRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode search request: %w", err)
	}

	r.Query = w.Query
	r.Threshold = DefaultThreshold
	if w.Threshold != nil {
		r.Threshold = *w.Threshold
	}
	r.Corpus = ""
	if w.Corpus != nil {
		r.Corpus = *w.Corpus
	}
	r.Limit = DefaultLimit
	if w.Limit != nil {
		r.Limit = *w.Limit
	}
	return nil
}

// MarshalJSON emits the same wire shape the transports accept.
func (r SearchRequest) MarshalJSON() ([]byte, error) {
	w := searchRequestWire{
		Query:     r.Query,
		Threshold: &r.Threshold,
		Corpus:    &r.Corpus,
		Limit:     &r.Limit,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	return data, nil
}

// Validate checks the request bounds. Corpus membership against the registry
// snapshot is the pipeline's job; this only rejects ill-formed ids so that an
// id failing the charset rule never reaches a membership lookup.
func (r *SearchRequest) Validate() error {
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be between 0 and 1, got %g", ErrInvalidThreshold, r.Threshold)
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return fmt.Errorf("%w: max_results must be between 1 and %d, got %d", ErrInvalidLimit, MaxLimit, r.Limit)
	}
	if !ValidCorpusID(r.Corpus) {
		return fmt.Errorf("%w: %q", ErrCorpusNotSupported, r.Corpus)
	}
	return nil
}
