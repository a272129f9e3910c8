package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

// Compile-time check that *DB satisfies the catalog contract.
var _ repository.SnippetRepository = (*DB)(nil)

// Every snippet read — all six facets, owner and admin scopes, identifier
// lookup — goes through the same projection and the same joins. Facets differ
// only in their WHERE clause, so a count and its page can never disagree.
const (
	snippetColumns = `s.id, s.title, s.slug, s.short_id, s.description, s.code, s.tags,
		s.reference_url, s.category_id, s.language_id, s.user_id, s.is_private,
		s.created_at, s.updated_at,
		u.username, c.name, c.slug, l.name, l.slug`

	snippetJoins = ` FROM snippets s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN categories c ON c.id = s.category_id
		LEFT JOIN languages l ON l.id = s.language_id`

	// The visibility policy. Evaluated inside the query, never in memory, so
	// private or unapproved-author rows cannot leak through any facet and
	// counts always match pages.
	visibleOnly = `s.is_private = 0 AND u.is_approved = 1`

	// Newest first; id breaks created_at ties so the order is stable across
	// rows inserted within the same timestamp resolution.
	snippetOrder = ` ORDER BY s.created_at DESC, s.id DESC`
)

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(sc scanner) (*model.Snippet, error) {
	var (
		s         model.Snippet
		catID     sql.NullInt64
		langID    sql.NullInt64
		catName   sql.NullString
		catSlug   sql.NullString
		langName  sql.NullString
		langSlug  sql.NullString
		isPrivate int
	)

	err := sc.Scan(
		&s.ID, &s.Title, &s.Slug, &s.ShortID, &s.Description, &s.Code, &s.Tags,
		&s.ReferenceURL, &catID, &langID, &s.UserID, &isPrivate,
		&s.CreatedAt, &s.UpdatedAt,
		&s.Author, &catName, &catSlug, &langName, &langSlug,
	)
	if err != nil {
		return nil, err
	}

	s.IsPrivate = isPrivate != 0
	if catID.Valid {
		s.CategoryID = &catID.Int64
	}
	if langID.Valid {
		s.LanguageID = &langID.Int64
	}
	s.CategoryName = catName.String
	s.CategorySlug = catSlug.String
	s.LanguageName = langName.String
	s.LanguageSlug = langSlug.String

	return &s, nil
}

// countSnippets runs the shared COUNT query. where may be empty (admin scope).
func (db *DB) countSnippets(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT COUNT(*)` + snippetJoins
	if where != "" {
		query += ` WHERE ` + where
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return n, nil
}

// pageSnippets runs the shared SELECT with the shared ordering and the
// clamped LIMIT/OFFSET. A page past the end comes back empty, never an error.
func (db *DB) pageSnippets(ctx context.Context, where string, page repository.Page, args ...any) ([]model.Snippet, error) {
	query := `SELECT ` + snippetColumns + snippetJoins
	if where != "" {
		query += ` WHERE ` + where
	}
	query += snippetOrder + ` LIMIT ? OFFSET ?`

	limit, offset := page.Normalize()
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// --- Facet pairs -----------------------------------------------------------
//
// Substring facets use instr() rather than LIKE so the value is matched
// literally — a term containing % or _ cannot act as a wildcard. Tag matching
// runs against the raw comma-delimited string, not tokens, so "java" also
// matches a snippet tagged "javascript". That imprecision is inherited
// behaviour, kept on purpose and pinned by tests.

func (db *DB) CountAll(ctx context.Context) (int, error) {
	return db.countSnippets(ctx, visibleOnly)
}

func (db *DB) PageAll(ctx context.Context, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly, page)
}

func (db *DB) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	return db.countSnippets(ctx, visibleOnly+` AND s.category_id = ?`, categoryID)
}

func (db *DB) PageByCategory(ctx context.Context, categoryID int64, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly+` AND s.category_id = ?`, page, categoryID)
}

func (db *DB) CountByLanguage(ctx context.Context, languageID int64) (int, error) {
	return db.countSnippets(ctx, visibleOnly+` AND s.language_id = ?`, languageID)
}

func (db *DB) PageByLanguage(ctx context.Context, languageID int64, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly+` AND s.language_id = ?`, page, languageID)
}

func (db *DB) CountByAuthor(ctx context.Context, username string) (int, error) {
	return db.countSnippets(ctx, visibleOnly+` AND u.username = ?`, username)
}

func (db *DB) PageByAuthor(ctx context.Context, username string, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly+` AND u.username = ?`, page, username)
}

func (db *DB) CountByTag(ctx context.Context, tag string) (int, error) {
	return db.countSnippets(ctx, visibleOnly+` AND instr(s.tags, ?) > 0`, tag)
}

func (db *DB) PageByTag(ctx context.Context, tag string, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly+` AND instr(s.tags, ?) > 0`, page, tag)
}

const searchWhere = ` AND (instr(s.title, ?) > 0 OR instr(s.description, ?) > 0 OR instr(s.code, ?) > 0)`

func (db *DB) CountSearch(ctx context.Context, term string) (int, error) {
	return db.countSnippets(ctx, visibleOnly+searchWhere, term, term, term)
}

func (db *DB) PageSearch(ctx context.Context, term string, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, visibleOnly+searchWhere, page, term, term, term)
}

// Owner scope: the user sees all of their own rows, private or not, approved
// or not. The visibility policy does not apply here.

func (db *DB) CountByOwner(ctx context.Context, userID int64) (int, error) {
	return db.countSnippets(ctx, `s.user_id = ?`, userID)
}

func (db *DB) PageByOwner(ctx context.Context, userID int64, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, `s.user_id = ?`, page, userID)
}

// Admin scope: everything, unfiltered.

func (db *DB) CountUnfiltered(ctx context.Context) (int, error) {
	return db.countSnippets(ctx, "")
}

func (db *DB) PageUnfiltered(ctx context.Context, page repository.Page) ([]model.Snippet, error) {
	return db.pageSnippets(ctx, "", page)
}

// --- Lookups ---------------------------------------------------------------

// GetByID fetches a snippet by numeric ID with no visibility filter. It is
// used by the service layer ahead of ownership-guarded mutations; the guard
// in Update/Delete remains authoritative.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+snippetJoins+` WHERE s.id = ?`, id)

	s, err := scanSnippet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("sqlite: getting snippet %d: %w", id, err)
	}
	return s, nil
}

// GetByIdentifier resolves a slug or short ID. The row must either pass the
// visibility policy or belong to the viewer; viewerID 0 (anonymous) matches
// no owner.
func (db *DB) GetByIdentifier(ctx context.Context, identifier string, viewerID int64) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+snippetJoins+`
		 WHERE (s.slug = ? OR s.short_id = ?) AND (`+visibleOnly+` OR s.user_id = ?)`,
		identifier, identifier, viewerID)

	s, err := scanSnippet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", identifier)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %q: %w", identifier, err)
	}
	return s, nil
}

// SlugExists reports whether a snippet other than excludeID already holds
// slug. This probe is check-then-act: the UNIQUE index remains the backstop
// for the narrow window between probe and insert.
func (db *DB) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snippets WHERE slug = ? AND id != ?`,
		slug, excludeID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: probing slug %q: %w", slug, err)
	}
	return n > 0, nil
}

// VisibleTagFields returns the raw tags string of every visible snippet with
// a non-empty tags field. Splitting and counting happen in the service layer.
func (db *DB) VisibleTagFields(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.tags FROM snippets s
		 JOIN users u ON u.id = s.user_id
		 WHERE `+visibleOnly+` AND s.tags != ''`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching tag fields: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag field: %w", err)
		}
		fields = append(fields, tags)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tag fields: %w", err)
	}

	return fields, nil
}

// --- Mutations -------------------------------------------------------------

// Create inserts a new snippet. Slug and short ID are allocated by the
// service before this call; a UNIQUE violation on either surfaces as
// apperror.ErrConflict so the identity allocator can retry with a fresh
// candidate.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (title, slug, short_id, description, code, tags,
			reference_url, category_id, language_id, user_id, is_private,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.Title, snippet.Slug, snippet.ShortID, snippet.Description,
		snippet.Code, snippet.Tags, snippet.ReferenceURL,
		snippet.CategoryID, snippet.LanguageID, snippet.UserID,
		snippet.IsPrivate, snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", snippet.Slug)
		}
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading snippet id: %w", err)
	}
	snippet.ID = id

	return nil
}

// Update persists snippet changes, conditioned on ownership for non-admins.
//
// The ownership guard lives in the statement itself: the WHERE clause carries
// user_id = ? unless the actor is an admin, so even a buggy caller cannot
// mutate another user's row. Zero rows affected means "missing or not yours"
// — the two cases are deliberately indistinguishable and both surface as
// not-found.
//
// created_at and short_id are immutable and never appear in the SET list.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet, actor repository.Actor) error {
	snippet.UpdatedAt = time.Now()

	query := `UPDATE snippets
		 SET title = ?, slug = ?, description = ?, code = ?, tags = ?,
		     reference_url = ?, category_id = ?, language_id = ?, is_private = ?,
		     updated_at = ?
		 WHERE id = ?`
	args := []any{
		snippet.Title, snippet.Slug, snippet.Description, snippet.Code,
		snippet.Tags, snippet.ReferenceURL, snippet.CategoryID,
		snippet.LanguageID, snippet.IsPrivate, snippet.UpdatedAt,
		snippet.ID,
	}
	if !actor.IsAdmin {
		query += ` AND user_id = ?`
		args = append(args, actor.UserID)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", snippet.Slug)
		}
		return fmt.Errorf("sqlite: updating snippet %d: %w", snippet.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("snippet", fmt.Sprintf("%d", snippet.ID))
	}

	return nil
}

// Delete removes a snippet, with the same statement-level ownership guard as
// Update. Returns not-found when zero rows are affected.
func (db *DB) Delete(ctx context.Context, id int64, actor repository.Actor) error {
	query := `DELETE FROM snippets WHERE id = ?`
	args := []any{id}
	if !actor.IsAdmin {
		query += ` AND user_id = ?`
		args = append(args, actor.UserID)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("snippet", fmt.Sprintf("%d", id))
	}

	return nil
}
