package sqlite

import (
	"context"
	"fmt"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

var _ repository.TaxonomyRepository = (*DB)(nil)

// Categories and languages are structurally identical, so both sets of
// methods delegate to table-parameterized helpers. The table name is always
// one of two package-private literals, never caller input.

func (db *DB) createTaxon(ctx context.Context, table, resource, name, slug string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, slug) VALUES (?, ?)`, table),
		name, slug,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperror.Conflict(resource, name)
		}
		return 0, fmt.Errorf("sqlite: creating %s %q: %w", resource, name, err)
	}
	return res.LastInsertId()
}

func (db *DB) deleteTaxon(ctx context.Context, table, resource string, id int64) error {
	// ON DELETE SET NULL on snippets.category_id / language_id detaches
	// dependent snippets; nothing cascades.
	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %d: %w", resource, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound(resource, fmt.Sprintf("%d", id))
	}
	return nil
}

func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	id, err := db.createTaxon(ctx, "categories", "category", c.Name, c.Slug)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return cats, nil
}

func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	return db.deleteTaxon(ctx, "categories", "category", id)
}

func (db *DB) CreateLanguage(ctx context.Context, l *model.Language) error {
	id, err := db.createTaxon(ctx, "languages", "language", l.Name, l.Slug)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (db *DB) ListLanguages(ctx context.Context) ([]model.Language, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, slug FROM languages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing languages: %w", err)
	}
	defer rows.Close()

	var langs []model.Language
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.ID, &l.Name, &l.Slug); err != nil {
			return nil, fmt.Errorf("sqlite: scanning language row: %w", err)
		}
		langs = append(langs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating languages: %w", err)
	}
	return langs, nil
}

func (db *DB) DeleteLanguage(ctx context.Context, id int64) error {
	return db.deleteTaxon(ctx, "languages", "language", id)
}
