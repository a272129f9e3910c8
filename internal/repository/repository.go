// Package repository declares the storage interfaces consumed by the service
// layer. The concrete SQLite implementation lives in repository/sqlite;
// services only ever see these interfaces, which keeps them testable with
// in-memory mocks and the storage engine swappable.
package repository

import (
	"context"

	"github.com/snipvault/snipvault/internal/model"
)

// Pagination bounds. Size is clamped to 1..MaxPageSize (default DefaultPageSize),
// page numbers below 1 are treated as 1, and there is no upper clamp — a page
// past the end returns an empty slice, never an error.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects one window of an ordered result set.
type Page struct {
	Number int // 1-based
	Size   int
}

// Clamp applies the bounds above and returns the effective page. Callers use
// it to report the page metadata that paging actually honoured.
func (p Page) Clamp() Page {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	return p
}

// Normalize returns the effective LIMIT/OFFSET values. Count and page queries
// share predicates, so totalPages = ceil(count/size) computed by the caller
// always agrees with what paging returns.
func (p Page) Normalize() (limit, offset int) {
	c := p.Clamp()
	return c.Size, (c.Number - 1) * c.Size
}

// Actor identifies who is performing a mutation. For non-admins the ownership
// check is folded into the UPDATE/DELETE statement itself (user_id = ?), so a
// denied mutation is indistinguishable from a missing row: zero rows affected.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// SnippetRepository is the catalog's read/write contract.
//
// Every "visible" read applies the visibility policy — is_private = 0 AND the
// owning user's is_approved = 1 — inside the query's WHERE clause, never by
// filtering fetched rows. Count/Page pairs evaluate the identical predicate.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id int64) (*model.Snippet, error)
	// GetByIdentifier resolves a slug or short ID to a visible snippet, or to
	// one of the viewer's own snippets. viewerID 0 means anonymous.
	GetByIdentifier(ctx context.Context, identifier string, viewerID int64) (*model.Snippet, error)
	// SlugExists reports whether any snippet other than excludeID holds slug.
	// Pass excludeID 0 on create.
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Update(ctx context.Context, snippet *model.Snippet, actor Actor) error
	Delete(ctx context.Context, id int64, actor Actor) error

	// Facet pairs over visible snippets.
	CountAll(ctx context.Context) (int, error)
	PageAll(ctx context.Context, page Page) ([]model.Snippet, error)
	CountByCategory(ctx context.Context, categoryID int64) (int, error)
	PageByCategory(ctx context.Context, categoryID int64, page Page) ([]model.Snippet, error)
	CountByLanguage(ctx context.Context, languageID int64) (int, error)
	PageByLanguage(ctx context.Context, languageID int64, page Page) ([]model.Snippet, error)
	CountByAuthor(ctx context.Context, username string) (int, error)
	PageByAuthor(ctx context.Context, username string, page Page) ([]model.Snippet, error)
	CountByTag(ctx context.Context, tag string) (int, error)
	PageByTag(ctx context.Context, tag string, page Page) ([]model.Snippet, error)
	CountSearch(ctx context.Context, term string) (int, error)
	PageSearch(ctx context.Context, term string, page Page) ([]model.Snippet, error)

	// Owner scope bypasses the visibility policy for the user's own rows.
	CountByOwner(ctx context.Context, userID int64) (int, error)
	PageByOwner(ctx context.Context, userID int64, page Page) ([]model.Snippet, error)

	// Admin scope: all rows, unfiltered.
	CountUnfiltered(ctx context.Context) (int, error)
	PageUnfiltered(ctx context.Context, page Page) ([]model.Snippet, error)

	// VisibleTagFields returns the raw tags string of every visible snippet.
	// The tag index is derived from these by the service layer.
	VisibleTagFields(ctx context.Context) ([]string, error)
}

// UserRepository manages accounts. Username, email, API key, and GitHub ID
// each carry a UNIQUE constraint; violations surface as apperror.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByAPIKey(ctx context.Context, key string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	SetAPIKey(ctx context.Context, userID int64, key string) error
	Approve(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]model.User, error)
	// Delete removes the user and, via FK cascade, all their snippets.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// TaxonomyRepository manages the shared category/language reference tables.
// Deleting an entry nulls the FK on dependent snippets (ON DELETE SET NULL).
type TaxonomyRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateLanguage(ctx context.Context, l *model.Language) error
	ListLanguages(ctx context.Context) ([]model.Language, error)
	DeleteLanguage(ctx context.Context, id int64) error
}
