package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/snipvault/snipvault/internal/auth"
	"github.com/snipvault/snipvault/internal/handler"
	"github.com/snipvault/snipvault/internal/model"
	sqliteRepo "github.com/snipvault/snipvault/internal/repository/sqlite"
	"github.com/snipvault/snipvault/internal/service"
)

func newAuthHandler(t *testing.T) (*handler.AuthHandler, *service.AuthService) {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tokens, err := auth.NewTokenService("handler-test-secret-16+")
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}

	svc := service.NewAuthService(db.Users(), tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), logger)
	return handler.NewAuthHandler(svc, nil, logger), svc
}

func TestHandleRegister(t *testing.T) {
	h, _ := newAuthHandler(t)

	body := `{"username":"alice","email":"alice@example.com","password":"password1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	h.HandleRegister(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var user model.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsAdmin, "first registered user bootstraps as admin")
	// The hash never appears in the response.
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestHandleRegister_Validation(t *testing.T) {
	h, _ := newAuthHandler(t)

	body := `{"username":"x","email":"bad","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	h.HandleRegister(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleLogin_SetsSessionCookie(t *testing.T) {
	h, _ := newAuthHandler(t)

	register := `{"username":"alice","email":"alice@example.com","password":"password1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(register))
	h.HandleRegister(httptest.NewRecorder(), req)

	login := `{"username":"alice","password":"password1"}`
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(login))
	rr := httptest.NewRecorder()

	h.HandleLogin(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	if assert.NotNil(t, session, "login must set the session cookie") {
		assert.NotEmpty(t, session.Value)
		assert.True(t, session.HttpOnly)
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	h, _ := newAuthHandler(t)

	register := `{"username":"alice","email":"alice@example.com","password":"password1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(register))
	h.HandleRegister(httptest.NewRecorder(), req)

	login := `{"username":"alice","password":"wrong"}`
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(login))
	rr := httptest.NewRecorder()

	h.HandleLogin(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
}

func TestHandleLogout_ClearsCookie(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rr := httptest.NewRecorder()

	h.HandleLogout(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	cookies := rr.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		assert.Equal(t, auth.SessionCookie, cookies[0].Name)
		assert.Less(t, cookies[0].MaxAge, 0, "logout cookie must expire immediately")
	}
}

func TestHandleMe(t *testing.T) {
	h, svc := newAuthHandler(t)

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "password1")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = asUser(req, user.ID)
	rr := httptest.NewRecorder()

	h.HandleMe(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var me model.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&me))
	assert.Equal(t, user.ID, me.ID)
}

func TestHandleIssueAPIKey(t *testing.T) {
	h, svc := newAuthHandler(t)

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "password1")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/me/apikey", nil)
	req = asUser(req, user.ID)
	rr := httptest.NewRecorder()

	h.HandleIssueAPIKey(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp["apiKey"], "sv_")
}
