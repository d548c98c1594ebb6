package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
}

// SearchResult is the output of a search operation. Entries arrive in the
// store's order: ascending cosine distance, i.e. descending score.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit: the record key and 1 − cosine distance.
type SearchEntry struct {
	Key   string
	Score float64
}
