// Package verse hydrates verse records for ranked search hits.
package verse

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/db"
	"github.com/openscripture/versevec/internal/domain"
	"github.com/openscripture/versevec/internal/logger"
)

// Repo implements usecase/search.Hydrator.
type Repo struct{}

// New creates a verse repository.
func New() *Repo {
	return &Repo{}
}

// Fetch loads the verse records for ids from the corpus and returns them in
// the order of ids, regardless of the order the store answered in. Verses
// missing from the store or with malformed fields are dropped.
func (r *Repo) Fetch(
	ctx context.Context, q db.Querier,
	corpus string, ids []int,
) ([]domain.Verse, error) {
	if len(ids) == 0 {
		return []domain.Verse{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("%s%s:verse:%d", domain.KeyPrefix, corpus, id)
	}

	rows, err := q.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch verses %s: %w", corpus, err)
	}

	byID := make(map[int]domain.Verse, len(rows))
	for i, fields := range rows {
		if len(fields) == 0 {
			// Verse deleted between search and hydration.
			continue
		}
		v, err := parseVerse(ids[i], fields)
		if err != nil {
			logger.FromContext(ctx).Warn("skipping malformed verse record",
				zap.String("key", keys[i]),
				zap.Error(err))
			continue
		}
		byID[ids[i]] = v
	}

	verses := make([]domain.Verse, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			verses = append(verses, v)
		}
	}
	return verses, nil
}

func parseVerse(id int, fields map[string]string) (domain.Verse, error) {
	chapter, err := strconv.Atoi(fields["chapter"])
	if err != nil {
		return domain.Verse{}, fmt.Errorf("chapter %q: %w", fields["chapter"], err)
	}
	number, err := strconv.Atoi(fields["verse"])
	if err != nil {
		return domain.Verse{}, fmt.Errorf("verse %q: %w", fields["verse"], err)
	}
	if fields["book"] == "" {
		return domain.Verse{}, fmt.Errorf("missing book field")
	}
	return domain.Verse{
		ID:      id,
		Book:    fields["book"],
		Chapter: chapter,
		Number:  number,
		Text:    fields["text"],
	}, nil
}
