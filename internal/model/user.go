package model

import "time"

// User is a registered account. Snippets are exclusively owned by their user;
// deleting a user deletes their snippets (FK cascade in the schema).
//
// IsApproved gates visibility: a snippet only appears in public listings when
// its author has been approved by an admin. Freshly registered accounts start
// unapproved, except the very first account, which bootstraps as an approved
// admin.
//
// APIKey and GitHubID are pointers because both are "unset until it happens":
// the API key is NULL until first issuance, GitHubID is NULL unless the
// account was created through GitHub sign-in. Both columns carry a UNIQUE
// constraint; NULLs don't collide with each other in SQLite.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	APIKey       *string   `json:"-"` // returned only from the issuance endpoint
	GitHubID     *int64    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	IsApproved   bool      `json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
