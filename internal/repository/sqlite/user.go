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

// UserDB is the account-facing view of DB. repository.UserRepository and
// repository.SnippetRepository both declare Create/GetByID/Delete with
// different signatures, which a single Go type cannot carry; those three
// methods live here, everything else is promoted from the embedded *DB.
type UserDB struct {
	*DB
}

// Users returns the view of db that satisfies repository.UserRepository.
func (db *DB) Users() UserDB {
	return UserDB{db}
}

var _ repository.UserRepository = UserDB{}

const userColumns = `id, username, email, password_hash, api_key, github_id,
	is_admin, is_approved, created_at, updated_at`

func scanUser(sc scanner) (*model.User, error) {
	var (
		u        model.User
		apiKey   sql.NullString
		githubID sql.NullInt64
		isAdmin  int
		approved int
	)

	err := sc.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &apiKey, &githubID,
		&isAdmin, &approved, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if apiKey.Valid {
		u.APIKey = &apiKey.String
	}
	if githubID.Valid {
		u.GitHubID = &githubID.Int64
	}
	u.IsAdmin = isAdmin != 0
	u.IsApproved = approved != 0

	return &u, nil
}

// Create inserts a new account. Username and email carry UNIQUE constraints;
// a violation surfaces as apperror.ErrConflict rather than a raw driver error.
func (db UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, github_id,
			is_admin, is_approved, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.GitHubID,
		user.IsAdmin, user.IsApproved, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id

	return nil
}

func (db *DB) getUserWhere(ctx context.Context, where, key string, args ...any) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, args...)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return u, nil
}

func (db UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUserWhere(ctx, `id = ?`, fmt.Sprintf("%d", id), id)
}

func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserWhere(ctx, `username = ?`, username, username)
}

func (db *DB) GetByAPIKey(ctx context.Context, key string) (*model.User, error) {
	// The key itself never goes into an error message.
	return db.getUserWhere(ctx, `api_key = ?`, "by api key", key)
}

func (db *DB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserWhere(ctx, `github_id = ?`, fmt.Sprintf("github:%d", githubID), githubID)
}

// SetAPIKey stores a freshly issued key. The UNIQUE constraint on api_key is
// the sole collision defence — a clash is surfaced as a conflict, not retried
// here.
func (db *DB) SetAPIKey(ctx context.Context, userID int64, key string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("api key", "generated key")
		}
		return fmt.Errorf("sqlite: setting api key for user %d: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", fmt.Sprintf("%d", userID))
	}
	return nil
}

// Approve marks the user as visible-eligible: their public snippets start
// appearing in every facet from the next read on.
func (db *DB) Approve(ctx context.Context, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_approved = 1, updated_at = ? WHERE id = ?`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: approving user %d: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", fmt.Sprintf("%d", userID))
	}
	return nil
}

func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Delete removes the account. The users→snippets FK is ON DELETE CASCADE, so
// the user's snippets go with them in the same statement.
func (db UserDB) Delete(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", fmt.Sprintf("%d", id))
	}
	return nil
}

func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}
