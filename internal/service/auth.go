package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rs/xid"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/auth"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// AuthService orchestrates registration, login (password and GitHub), API key
// issuance, and the admin user-management operations.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued session token so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password-based account.
//
// New accounts start unapproved — their public snippets stay out of every
// listing until an admin approves them. The sole exception bootstraps the
// system: the very first account becomes an approved admin, otherwise nobody
// could ever approve anyone.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			"username must be 3-30 characters of letters, digits, hyphen, or underscore")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	existing, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/auth: counting users: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      existing == 0,
		IsApproved:   existing == 0,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("admin", user.IsAdmin),
	)

	return user, nil
}

// Login verifies credentials and issues a session token. Unknown username and
// wrong password produce the same error, so the endpoint can't be used to
// enumerate accounts.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid username or password")
		}
		return nil, fmt.Errorf("service/auth: fetching user: %w", err)
	}

	if user.PasswordHash == "" || s.passwords.Verify(user.PasswordHash, password) != nil {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// LoginOrRegisterGitHub completes the OAuth callback: find the account linked
// to this GitHub ID, or create one. OAuth accounts have no password and, like
// password registrations, await admin approval (first account excepted).
//
// The GitHub login is used as the username; if taken, an xid suffix makes it
// unique rather than failing the whole sign-in.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up github user %d: %w", ghUser.ID, err)
	}

	if user == nil {
		existing, err := s.users.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("service/auth: counting users: %w", err)
		}

		email := ghUser.Email
		if email == "" {
			// GitHub hides the email when the user opts out; the noreply
			// address keeps the unique email column satisfied.
			email = fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
		}

		githubID := ghUser.ID
		user = &model.User{
			Username:   ghUser.Login,
			Email:      email,
			GitHubID:   &githubID,
			IsAdmin:    existing == 0,
			IsApproved: existing == 0,
		}

		if err := s.users.Create(ctx, user); err != nil {
			if !errors.Is(err, apperror.ErrConflict) {
				return nil, err
			}
			user.Username = fmt.Sprintf("%s-%s", ghUser.Login, xid.New().String())
			if err := s.users.Create(ctx, user); err != nil {
				return nil, err
			}
		}

		s.logger.Info("user registered via GitHub",
			slog.Int64("userID", user.ID),
			slog.String("username", user.Username),
		)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// IssueAPIKey mints a new API key for the user and stores it, replacing any
// previous key. The plaintext key is returned exactly once.
func (s *AuthService) IssueAPIKey(ctx context.Context, userID int64) (string, error) {
	key, err := auth.NewAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.users.SetAPIKey(ctx, userID, key); err != nil {
		return "", err
	}

	s.logger.Info("api key issued", slog.Int64("userID", userID))
	return key, nil
}

// UserByAPIKey resolves a presented API key, satisfying auth.APIKeyLookup for
// the middleware. An unknown key surfaces as unauthorized, not as not-found.
func (s *AuthService) UserByAPIKey(ctx context.Context, key string) (*model.User, error) {
	if key == "" {
		return nil, apperror.Unauthorized("api key required")
	}
	user, err := s.users.GetByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid api key")
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID satisfies auth.UserLoader and serves the /api/me handler.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ValidateToken delegates to the token service so callers only need this
// package.
func (s *AuthService) ValidateToken(tokenStr string) (int64, error) {
	return s.tokens.Validate(tokenStr)
}

// --- Admin operations ------------------------------------------------------

func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// ApproveUser flips is_approved; from the next read on, the user's public
// snippets appear in every facet.
func (s *AuthService) ApproveUser(ctx context.Context, userID int64) error {
	if err := s.users.Approve(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user approved", slog.Int64("userID", userID))
	return nil
}

// DeleteUser removes the account and, through the FK cascade, every snippet
// it owns.
func (s *AuthService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("userID", userID))
	return nil
}
