package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

// mockSnippetRepo is an in-memory repository.SnippetRepository. It enforces
// slug/short-ID uniqueness and the statement-level ownership guard the same
// way the SQLite implementation does, so the service's retry and
// authorization logic can be exercised without a database.
type mockSnippetRepo struct {
	snippets map[int64]*model.Snippet
	approved map[int64]bool // owner user ID -> is_approved
	authors  map[int64]string
	nextID   int64
}

func newMockRepo() *mockSnippetRepo {
	return &mockSnippetRepo{
		snippets: make(map[int64]*model.Snippet),
		approved: make(map[int64]bool),
		authors:  make(map[int64]string),
	}
}

func (m *mockSnippetRepo) visible(s *model.Snippet) bool {
	return !s.IsPrivate && m.approved[s.UserID]
}

func (m *mockSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	for _, existing := range m.snippets {
		if existing.Slug == snippet.Slug || existing.ShortID == snippet.ShortID {
			return apperror.Conflict("snippet", snippet.Slug)
		}
	}
	m.nextID++
	snippet.ID = m.nextID
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id int64) (*model.Snippet, error) {
	s, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", "by id")
	}
	result := *s
	return &result, nil
}

func (m *mockSnippetRepo) GetByIdentifier(_ context.Context, identifier string, viewerID int64) (*model.Snippet, error) {
	for _, s := range m.snippets {
		if s.Slug != identifier && s.ShortID != identifier {
			continue
		}
		if m.visible(s) || s.UserID == viewerID {
			result := *s
			return &result, nil
		}
	}
	return nil, apperror.NotFound("snippet", identifier)
}

func (m *mockSnippetRepo) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	for _, s := range m.snippets {
		if s.Slug == slug && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSnippetRepo) Update(_ context.Context, snippet *model.Snippet, actor repository.Actor) error {
	current, ok := m.snippets[snippet.ID]
	if !ok || (!actor.IsAdmin && current.UserID != actor.UserID) {
		return apperror.NotFound("snippet", "by id")
	}
	for _, existing := range m.snippets {
		if existing.ID != snippet.ID && existing.Slug == snippet.Slug {
			return apperror.Conflict("snippet", snippet.Slug)
		}
	}
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id int64, actor repository.Actor) error {
	current, ok := m.snippets[id]
	if !ok || (!actor.IsAdmin && current.UserID != actor.UserID) {
		return apperror.NotFound("snippet", "by id")
	}
	delete(m.snippets, id)
	return nil
}

func (m *mockSnippetRepo) collect(pred func(*model.Snippet) bool, page repository.Page) []model.Snippet {
	var all []model.Snippet
	for _, s := range m.snippets {
		if pred(s) {
			all = append(all, *s)
		}
	}
	limit, offset := page.Normalize()
	if offset >= len(all) {
		return []model.Snippet{}
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (m *mockSnippetRepo) count(pred func(*model.Snippet) bool) int {
	n := 0
	for _, s := range m.snippets {
		if pred(s) {
			n++
		}
	}
	return n
}

func (m *mockSnippetRepo) CountAll(_ context.Context) (int, error) {
	return m.count(m.visible), nil
}

func (m *mockSnippetRepo) PageAll(_ context.Context, page repository.Page) ([]model.Snippet, error) {
	return m.collect(m.visible, page), nil
}

func (m *mockSnippetRepo) CountByCategory(_ context.Context, categoryID int64) (int, error) {
	return m.count(func(s *model.Snippet) bool {
		return m.visible(s) && s.CategoryID != nil && *s.CategoryID == categoryID
	}), nil
}

func (m *mockSnippetRepo) PageByCategory(_ context.Context, categoryID int64, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool {
		return m.visible(s) && s.CategoryID != nil && *s.CategoryID == categoryID
	}, page), nil
}

func (m *mockSnippetRepo) CountByLanguage(_ context.Context, languageID int64) (int, error) {
	return m.count(func(s *model.Snippet) bool {
		return m.visible(s) && s.LanguageID != nil && *s.LanguageID == languageID
	}), nil
}

func (m *mockSnippetRepo) PageByLanguage(_ context.Context, languageID int64, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool {
		return m.visible(s) && s.LanguageID != nil && *s.LanguageID == languageID
	}, page), nil
}

func (m *mockSnippetRepo) CountByAuthor(_ context.Context, username string) (int, error) {
	return m.count(func(s *model.Snippet) bool {
		return m.visible(s) && m.authors[s.UserID] == username
	}), nil
}

func (m *mockSnippetRepo) PageByAuthor(_ context.Context, username string, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool {
		return m.visible(s) && m.authors[s.UserID] == username
	}, page), nil
}

func (m *mockSnippetRepo) CountByTag(_ context.Context, tag string) (int, error) {
	return m.count(func(s *model.Snippet) bool {
		return m.visible(s) && strings.Contains(s.Tags, tag)
	}), nil
}

func (m *mockSnippetRepo) PageByTag(_ context.Context, tag string, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool {
		return m.visible(s) && strings.Contains(s.Tags, tag)
	}, page), nil
}

func (m *mockSnippetRepo) CountSearch(_ context.Context, term string) (int, error) {
	return m.count(func(s *model.Snippet) bool {
		return m.visible(s) && (strings.Contains(s.Title, term) ||
			strings.Contains(s.Description, term) || strings.Contains(s.Code, term))
	}), nil
}

func (m *mockSnippetRepo) PageSearch(_ context.Context, term string, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool {
		return m.visible(s) && (strings.Contains(s.Title, term) ||
			strings.Contains(s.Description, term) || strings.Contains(s.Code, term))
	}, page), nil
}

func (m *mockSnippetRepo) CountByOwner(_ context.Context, userID int64) (int, error) {
	return m.count(func(s *model.Snippet) bool { return s.UserID == userID }), nil
}

func (m *mockSnippetRepo) PageByOwner(_ context.Context, userID int64, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(s *model.Snippet) bool { return s.UserID == userID }, page), nil
}

func (m *mockSnippetRepo) CountUnfiltered(_ context.Context) (int, error) {
	return len(m.snippets), nil
}

func (m *mockSnippetRepo) PageUnfiltered(_ context.Context, page repository.Page) ([]model.Snippet, error) {
	return m.collect(func(*model.Snippet) bool { return true }, page), nil
}

func (m *mockSnippetRepo) VisibleTagFields(_ context.Context) ([]string, error) {
	var fields []string
	for _, s := range m.snippets {
		if m.visible(s) && s.Tags != "" {
			fields = append(fields, s.Tags)
		}
	}
	return fields, nil
}

var _ repository.SnippetRepository = (*mockSnippetRepo)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestService wires a SnippetService onto the mock with one approved user.
func newTestService(t *testing.T) (*SnippetService, *mockSnippetRepo) {
	t.Helper()
	repo := newMockRepo()
	repo.approved[1] = true
	repo.authors[1] = "alice"
	return NewSnippetService(repo, testLogger()), repo
}

func validInput(title string) SnippetInput {
	return SnippetInput{Title: title, Code: "fmt.Println()"}
}

func TestCreate_AllocatesIdentifiers(t *testing.T) {
	svc, _ := newTestService(t)

	snippet, err := svc.Create(context.Background(), validInput("Binary Search"), 1)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if snippet.Slug != "binary-search" {
		t.Errorf("Slug = %q, want %q", snippet.Slug, "binary-search")
	}
	if snippet.ShortID == "" {
		t.Error("Create() did not mint a short ID")
	}
	if snippet.UserID != 1 {
		t.Errorf("UserID = %d, want 1", snippet.UserID)
	}
}

func TestCreate_DuplicateTitleGetsSuffixedSlug(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Create(context.Background(), validInput("Same Title"), 1)
	if err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	second, err := svc.Create(context.Background(), validInput("Same Title"), 1)
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}

	if first.Slug != "same-title" {
		t.Errorf("first slug = %q, want %q", first.Slug, "same-title")
	}
	if second.Slug == first.Slug {
		t.Error("second slug collides with the first")
	}
	if !strings.HasPrefix(second.Slug, "same-title-") {
		t.Errorf("second slug = %q, want timestamp-suffixed form of %q", second.Slug, "same-title")
	}
	if second.ShortID == first.ShortID {
		t.Error("short IDs collide")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name  string
		input SnippetInput
	}{
		{"empty title", SnippetInput{Title: "", Code: "x"}},
		{"whitespace title", SnippetInput{Title: "   ", Code: "x"}},
		{"title too long", SnippetInput{Title: strings.Repeat("a", MaxTitleLength+1), Code: "x"}},
		{"empty code", SnippetInput{Title: "ok", Code: ""}},
		{"code too long", SnippetInput{Title: "ok", Code: strings.Repeat("x", MaxCodeLength+1)}},
	}

	for _, tc := range cases {
		_, err := svc.Create(context.Background(), tc.input, 1)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("%s: error = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestCreate_TrimsWhitespace(t *testing.T) {
	svc, _ := newTestService(t)

	in := SnippetInput{Title: "  Padded  ", Code: "x", Description: "  desc  ", Tags: " go, cli "}
	snippet, err := svc.Create(context.Background(), in, 1)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.Title != "Padded" {
		t.Errorf("Title = %q, want trimmed %q", snippet.Title, "Padded")
	}
	if snippet.Description != "desc" {
		t.Errorf("Description = %q, want trimmed %q", snippet.Description, "desc")
	}
	if snippet.Tags != "go, cli" {
		t.Errorf("Tags = %q, want trimmed %q", snippet.Tags, "go, cli")
	}
}

func TestUpdate_UnchangedTitleKeepsSlug(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validInput("Stable Title"), 1)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	in := validInput("Stable Title")
	in.Description = "edited"
	updated, err := svc.Update(context.Background(), created.ID, in, repository.Actor{UserID: 1})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Slug != created.Slug {
		t.Errorf("slug changed on title-preserving edit: %q -> %q", created.Slug, updated.Slug)
	}
	if updated.ShortID != created.ShortID {
		t.Errorf("short ID changed on edit: %q -> %q", created.ShortID, updated.ShortID)
	}
	if updated.Description != "edited" {
		t.Errorf("Description = %q, want %q", updated.Description, "edited")
	}
}

func TestUpdate_NewTitleReallocatesSlug(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validInput("Old Title"), 1)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	updated, err := svc.Update(context.Background(), created.ID, validInput("New Title"), repository.Actor{UserID: 1})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Slug != "new-title" {
		t.Errorf("Slug = %q, want %q", updated.Slug, "new-title")
	}
}

func TestUpdate_ForeignSnippetIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validInput("Owned"), 1)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	// A non-owner sees not-found, never forbidden — existence is not leaked.
	_, err = svc.Update(context.Background(), created.ID, validInput("Hijack"), repository.Actor{UserID: 2})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() by non-owner: error = %v, want ErrNotFound", err)
	}

	// An admin goes through.
	_, err = svc.Update(context.Background(), created.ID, validInput("Moderated"), repository.Actor{UserID: 2, IsAdmin: true})
	if err != nil {
		t.Errorf("Update() by admin: error = %v, want nil", err)
	}
}

func TestDelete_ForeignSnippetIsNotFound(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.Create(context.Background(), validInput("Doomed"), 1)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID, repository.Actor{UserID: 2}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() by non-owner: error = %v, want ErrNotFound", err)
	}

	if err := svc.Delete(context.Background(), created.ID, repository.Actor{UserID: 1}); err != nil {
		t.Fatalf("Delete() by owner: error = %v", err)
	}
	if len(repo.snippets) != 0 {
		t.Errorf("repo still holds %d snippets after delete", len(repo.snippets))
	}
}

func TestGet_EmptyIdentifier(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "  ", 0)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get(blank) error = %v, want ErrValidation", err)
	}
}

func TestFacets_RejectEmptyArguments(t *testing.T) {
	svc, _ := newTestService(t)
	page := repository.Page{}

	if _, _, err := svc.ListByTag(context.Background(), " ", page); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ListByTag(blank) error = %v, want ErrValidation", err)
	}
	if _, _, err := svc.Search(context.Background(), "", page); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Search(blank) error = %v, want ErrValidation", err)
	}
	if _, _, err := svc.ListByAuthor(context.Background(), "", page); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ListByAuthor(blank) error = %v, want ErrValidation", err)
	}
}

func TestListAll_CountMatchesVisibleItems(t *testing.T) {
	svc, repo := newTestService(t)
	repo.approved[2] = false
	repo.authors[2] = "pending"

	if _, err := svc.Create(context.Background(), validInput("Visible One"), 1); err != nil {
		t.Fatalf("setup: %v", err)
	}
	hidden := validInput("Hidden One")
	hidden.IsPrivate = true
	if _, err := svc.Create(context.Background(), hidden, 1); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := svc.Create(context.Background(), validInput("Unapproved One"), 2); err != nil {
		t.Fatalf("setup: %v", err)
	}

	items, total, err := svc.ListAll(context.Background(), repository.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(items) != 1 || items[0].Title != "Visible One" {
		t.Errorf("items = %v, want only Visible One", items)
	}

	// Owner scope sees both of user 1's snippets.
	_, ownTotal, err := svc.ListOwn(context.Background(), 1, repository.Page{})
	if err != nil {
		t.Fatalf("ListOwn() error = %v", err)
	}
	if ownTotal != 2 {
		t.Errorf("ListOwn total = %d, want 2", ownTotal)
	}

	// Admin scope sees all three.
	_, allTotal, err := svc.ListUnfiltered(context.Background(), repository.Page{})
	if err != nil {
		t.Fatalf("ListUnfiltered() error = %v", err)
	}
	if allTotal != 3 {
		t.Errorf("ListUnfiltered total = %d, want 3", allTotal)
	}
}
