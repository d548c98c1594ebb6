package domain

import "regexp"

// KeyPrefix namespaces all store keys owned by versevec.
const KeyPrefix = "versevec:"

// Verse is one addressable unit of corpus content: a locator triple and the
// text body. Verses are written by the ingestion tooling and read-only here.
type Verse struct {
	ID      int    `json:"-"`
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Number  int    `json:"verse"`
	Text    string `json:"text"`
}

// Hit is a single similarity match: a verse id and its score (1 − cosine
// distance to the query vector).
type Hit struct {
	VerseID int
	Score   float64
}

// corpusIDPattern is the only shape a corpus id may take. Anything else is
// rejected before the id gets anywhere near key construction.
var corpusIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidCorpusID reports whether id is a well-formed corpus identifier.
func ValidCorpusID(id string) bool {
	return corpusIDPattern.MatchString(id)
}
