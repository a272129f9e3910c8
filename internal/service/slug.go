package service

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9_-]`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a URL-safe slug from a title: lowercase, whitespace runs
// collapsed to single hyphens, everything outside [a-z0-9_-] stripped,
// repeated hyphens collapsed, edge hyphens trimmed.
//
// A title made entirely of stripped characters would produce an empty slug,
// which can't serve as an identifier; "snippet" stands in and the collision
// suffix keeps repeats unique.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "snippet"
	}
	return s
}
