package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/snipvault/snipvault/internal/model"
)

// TagIndex builds the derived tag-frequency index: the tags field of every
// visible snippet is split on commas, tokens trimmed, empties dropped, and
// occurrences counted. The result is sorted lexicographically by name.
//
// Recomputed from scratch on every call — it runs once per page render, not
// on a hot path, and caching would have to be invalidated on every snippet
// write and every approval flip.
func (s *SnippetService) TagIndex(ctx context.Context) ([]model.TagCount, error) {
	fields, err := s.repo.VisibleTagFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("building tag index: %w", err)
	}

	counts := make(map[string]int)
	for _, field := range fields {
		for _, token := range strings.Split(field, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			counts[token]++
		}
	}

	index := make([]model.TagCount, 0, len(counts))
	for name, count := range counts {
		index = append(index, model.TagCount{Name: name, Count: count})
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Name < index[j].Name })

	return index, nil
}
