// Package service contains the business logic layer: validation, identity
// allocation, visibility-scoped reads, and mutation authorization. Handlers
// parse HTTP and delegate here; repositories execute the queries. Services
// receive repository interfaces, never concrete database types.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

const (
	MaxTitleLength = 100
	MaxCodeLength  = 100000 // ~100KB

	// maxSlugAttempts bounds the conflict-retry loop in Create/Update. The
	// pre-insert probe already disambiguates; retries only fire when two
	// requests race between probe and insert and the UNIQUE index rejects
	// the loser.
	maxSlugAttempts = 3
)

// SnippetInput carries the caller-editable fields of a snippet. Slug, short
// ID, owner, and timestamps are allocated here, never accepted from callers.
type SnippetInput struct {
	Title        string
	Description  string
	Code         string
	Tags         string
	ReferenceURL string
	CategoryID   *int64
	LanguageID   *int64
	IsPrivate    bool
}

// SnippetService implements the catalog contract on top of a
// SnippetRepository.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{repo: repo, logger: logger}
}

func validateInput(in *SnippetInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Tags = strings.TrimSpace(in.Tags)
	in.ReferenceURL = strings.TrimSpace(in.ReferenceURL)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if in.Code == "" {
		return apperror.ValidationFailed("code", "code is required")
	}
	if len(in.Code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return nil
}

// timestampSlug appends the current Unix-millisecond timestamp to a slug
// candidate. Best effort: if even the suffixed slug collides, the UNIQUE
// index rejects the write and the bounded retry in Create/Update picks a
// fresh suffix.
func timestampSlug(base string) string {
	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli())
}

// allocateSlug derives the final slug for a title: the plain Slugify result
// if no other snippet holds it, otherwise the timestamp-suffixed form.
// excludeID skips the row's own slug on update, so an unchanged title never
// trips over itself.
func (s *SnippetService) allocateSlug(ctx context.Context, title string, excludeID int64) (string, error) {
	base := Slugify(title)
	exists, err := s.repo.SlugExists(ctx, base, excludeID)
	if err != nil {
		return "", fmt.Errorf("allocating slug: %w", err)
	}
	if !exists {
		return base, nil
	}
	return timestampSlug(base), nil
}

// Create validates input, allocates both identifiers, and inserts.
//
// The short ID is minted exactly once here and never touched again; its
// uniqueness rests solely on the database constraint. The slug's probe-based
// allocation is check-then-act, so on a conflict at insert time we regenerate
// the suffix and retry a bounded number of times before giving up.
func (s *SnippetService) Create(ctx context.Context, in SnippetInput, ownerID int64) (*model.Snippet, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	slug, err := s.allocateSlug(ctx, in.Title, 0)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Title:        in.Title,
		Slug:         slug,
		ShortID:      xid.New().String(),
		Description:  in.Description,
		Code:         in.Code,
		Tags:         in.Tags,
		ReferenceURL: in.ReferenceURL,
		CategoryID:   in.CategoryID,
		LanguageID:   in.LanguageID,
		UserID:       ownerID,
		IsPrivate:    in.IsPrivate,
	}

	base := Slugify(in.Title)
	for attempt := 1; ; attempt++ {
		err := s.repo.Create(ctx, snippet)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrConflict) && attempt < maxSlugAttempts {
			snippet.Slug = timestampSlug(base)
			continue
		}
		s.logger.Error("failed to create snippet",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("snippet created",
		slog.Int64("id", snippet.ID),
		slog.String("slug", snippet.Slug),
		slog.Int64("owner", ownerID),
	)

	return snippet, nil
}

// Update applies a full set of editable fields to an existing snippet.
//
// The slug regenerates only when the title actually changed — an edit that
// leaves the title alone must not churn the slug and break outbound links.
// The ownership check is NOT performed here: it lives in the repository's
// UPDATE statement, so for non-admins a foreign snippet behaves exactly like
// a missing one.
func (s *SnippetService) Update(ctx context.Context, id int64, in SnippetInput, actor repository.Actor) (*model.Snippet, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	slug := current.Slug
	if in.Title != current.Title {
		slug, err = s.allocateSlug(ctx, in.Title, id)
		if err != nil {
			return nil, err
		}
	}

	updated := *current
	updated.Title = in.Title
	updated.Slug = slug
	updated.Description = in.Description
	updated.Code = in.Code
	updated.Tags = in.Tags
	updated.ReferenceURL = in.ReferenceURL
	updated.CategoryID = in.CategoryID
	updated.LanguageID = in.LanguageID
	updated.IsPrivate = in.IsPrivate

	base := Slugify(in.Title)
	for attempt := 1; ; attempt++ {
		err := s.repo.Update(ctx, &updated, actor)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrConflict) && in.Title != current.Title && attempt < maxSlugAttempts {
			updated.Slug = timestampSlug(base)
			continue
		}
		return nil, err
	}

	s.logger.Info("snippet updated",
		slog.Int64("id", updated.ID),
		slog.String("slug", updated.Slug),
		slog.Int64("actor", actor.UserID),
	)

	return &updated, nil
}

// Delete removes a snippet. Same authorization model as Update: the
// statement-level guard decides, and a denied delete surfaces as not-found.
func (s *SnippetService) Delete(ctx context.Context, id int64, actor repository.Actor) error {
	if err := s.repo.Delete(ctx, id, actor); err != nil {
		return err
	}
	s.logger.Info("snippet deleted",
		slog.Int64("id", id),
		slog.Int64("actor", actor.UserID),
	)
	return nil
}

// Get resolves a slug or short ID. viewerID 0 means anonymous; a logged-in
// viewer additionally sees their own private or pre-approval snippets.
func (s *SnippetService) Get(ctx context.Context, identifier string, viewerID int64) (*model.Snippet, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("identifier", "identifier is required")
	}
	return s.repo.GetByIdentifier(ctx, identifier, viewerID)
}

// --- Facet listings --------------------------------------------------------
//
// Each returns one page plus the total count under the identical predicate,
// so callers can compute ceil(total/size) and trust it against what the page
// returns.

func (s *SnippetService) ListAll(ctx context.Context, page repository.Page) ([]model.Snippet, int, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageAll(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SnippetService) ListByCategory(ctx context.Context, categoryID int64, page repository.Page) ([]model.Snippet, int, error) {
	total, err := s.repo.CountByCategory(ctx, categoryID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageByCategory(ctx, categoryID, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SnippetService) ListByLanguage(ctx context.Context, languageID int64, page repository.Page) ([]model.Snippet, int, error) {
	total, err := s.repo.CountByLanguage(ctx, languageID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageByLanguage(ctx, languageID, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SnippetService) ListByAuthor(ctx context.Context, username string, page repository.Page) ([]model.Snippet, int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, 0, apperror.ValidationFailed("username", "username is required")
	}
	total, err := s.repo.CountByAuthor(ctx, username)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageByAuthor(ctx, username, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByTag matches the value as a substring of the raw comma-delimited tags
// field — not token-exact. "java" therefore also matches snippets tagged
// "javascript"; see the tests pinning this behaviour.
func (s *SnippetService) ListByTag(ctx context.Context, tag string, page repository.Page) ([]model.Snippet, int, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, 0, apperror.ValidationFailed("tag", "tag is required")
	}
	total, err := s.repo.CountByTag(ctx, tag)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageByTag(ctx, tag, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Search matches the term as a literal substring of title, description, or
// code. No ranking: results keep the shared newest-first ordering.
func (s *SnippetService) Search(ctx context.Context, term string, page repository.Page) ([]model.Snippet, int, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, 0, apperror.ValidationFailed("q", "search term is required")
	}
	total, err := s.repo.CountSearch(ctx, term)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageSearch(ctx, term, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOwn returns the user's own snippets, private ones included. No
// visibility policy here — it's the owner's view.
func (s *SnippetService) ListOwn(ctx context.Context, userID int64, page repository.Page) ([]model.Snippet, int, error) {
	total, err := s.repo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageByOwner(ctx, userID, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListUnfiltered is the admin dashboard view: every snippet, no policy.
func (s *SnippetService) ListUnfiltered(ctx context.Context, page repository.Page) ([]model.Snippet, int, error) {
	total, err := s.repo.CountUnfiltered(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.PageUnfiltered(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
