// Package model defines the data structures shared across the application.
// Structs here carry no behaviour — the business rules live in
// internal/service, persistence in internal/repository.
package model

import "time"

// Snippet is the core catalog entity: a piece of code with a title,
// free-text description, and a comma-delimited tag string.
//
// Two public identifiers exist side by side:
//   - Slug: SEO-facing, derived from the title, unique, may change when the
//     title changes.
//   - ShortID: opaque fixed-length token for compact permanent links,
//     assigned once at creation and never regenerated.
//
// CategoryID and LanguageID are nullable — deleting a category or language
// detaches its snippets rather than deleting them, so we use *int64 and let
// nil mean "unassigned".
type Snippet struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	ShortID      string    `json:"shortId"`
	Description  string    `json:"description"`
	Code         string    `json:"code"`
	Tags         string    `json:"tags"` // comma-delimited, e.g. "cli, script"
	ReferenceURL string    `json:"referenceUrl"`
	CategoryID   *int64    `json:"categoryId"`
	LanguageID   *int64    `json:"languageId"`
	UserID       int64     `json:"userId"`
	IsPrivate    bool      `json:"isPrivate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Denormalized read-side fields, populated by the repository's joined
	// projection. Never written back to storage.
	Author       string `json:"author,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	CategorySlug string `json:"categorySlug,omitempty"`
	LanguageName string `json:"languageName,omitempty"`
	LanguageSlug string `json:"languageSlug,omitempty"`
}

// TagCount is one entry of the derived tag-frequency index.
// Tags are never stored as rows — the index is recomputed on demand from the
// Tags field of every visible snippet.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
