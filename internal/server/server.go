// Package server is the composition root: it opens the database, assembles
// the repository/service/handler chain, mounts every route with its
// middleware, and runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/snipvault/snipvault/internal/auth"
	"github.com/snipvault/snipvault/internal/handler"
	"github.com/snipvault/snipvault/internal/middleware"
	sqliteRepo "github.com/snipvault/snipvault/internal/repository/sqlite"
	"github.com/snipvault/snipvault/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// GitHub OAuth app credentials. When the client ID is empty the OAuth
	// routes are not mounted and password auth is the only way in.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown in Start.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires the full dependency chain. Each layer
// receives only the layer below it: services get repository interfaces, and
// handlers get services.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("server: JWT secret is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)
	snippetService := service.NewSnippetService(s.db, s.logger)
	taxonomyService := service.NewTaxonomyService(s.db, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, authService, s.logger)
	taxonomyHandler := handler.NewTaxonomyHandler(taxonomyService, s.logger)
	adminHandler := handler.NewAdminHandler(authService, snippetService, s.logger)

	requireAuth := auth.RequireAuth(tokens, authService)
	optionalAuth := auth.OptionalAuth(tokens, authService)
	requireAdmin := auth.RequireAdmin(authService)

	// Browser OAuth flow lives outside /api: GitHub redirects the user's
	// browser here, not an API client.
	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/me/apikey", authHandler.HandleIssueAPIKey)
		})

		// Public reference data and the derived tag index.
		r.Get("/categories", taxonomyHandler.HandleListCategories)
		r.Get("/languages", taxonomyHandler.HandleListLanguages)
		r.Get("/tags", snippetHandler.HandleTags)

		// Snippet reads. The fixed facet segments must be declared before
		// the {identifier} catch-all so "search" or "mine" never resolve as
		// a slug lookup.
		r.Get("/snippets", snippetHandler.HandleList)
		r.Get("/snippets/search", snippetHandler.HandleSearch)
		r.Get("/snippets/category/{id}", snippetHandler.HandleListByCategory)
		r.Get("/snippets/language/{id}", snippetHandler.HandleListByLanguage)
		r.Get("/snippets/author/{username}", snippetHandler.HandleListByAuthor)
		r.Get("/snippets/tag/{tag}", snippetHandler.HandleListByTag)

		// chi requires one wildcard name per position, so the write routes
		// share {identifier} with the GET below even though they only accept
		// the numeric ID.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/snippets/mine", snippetHandler.HandleListMine)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Put("/snippets/{identifier}", snippetHandler.HandleUpdate)
			r.Delete("/snippets/{identifier}", snippetHandler.HandleDelete)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/snippets/{identifier}", snippetHandler.HandleGet)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)
			r.Get("/users", adminHandler.HandleListUsers)
			r.Post("/users/{id}/approve", adminHandler.HandleApproveUser)
			r.Delete("/users/{id}", adminHandler.HandleDeleteUser)
			r.Get("/snippets", adminHandler.HandleListSnippets)
			r.Post("/categories", taxonomyHandler.HandleCreateCategory)
			r.Delete("/categories/{id}", taxonomyHandler.HandleDeleteCategory)
			r.Post("/languages", taxonomyHandler.HandleCreateLanguage)
			r.Delete("/languages/{id}", taxonomyHandler.HandleDeleteLanguage)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight requests
// and closes the database so the WAL is flushed and the file lock released.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for httptest-based integration tests.
func (s *Server) Router() http.Handler {
	return s.router
}
