package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

const maxTaxonNameLength = 60

// TaxonomyService manages the shared category and language reference tables.
// Slugs are derived from names with the same Slugify used for snippets; since
// names are unique and there is no title-edit path here, no timestamp
// disambiguation is needed — a slug clash is a genuine duplicate and surfaces
// as a conflict.
type TaxonomyService struct {
	repo   repository.TaxonomyRepository
	logger *slog.Logger
}

func NewTaxonomyService(repo repository.TaxonomyRepository, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{repo: repo, logger: logger}
}

func validateTaxonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > maxTaxonNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", maxTaxonNameLength))
	}
	return name, nil
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name, err := validateTaxonName(name)
	if err != nil {
		return nil, err
	}

	c := &model.Category{Name: name, Slug: Slugify(name)}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("category created", slog.Int64("id", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// DeleteCategory removes the category; dependent snippets keep existing with
// a null category reference.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logger.Info("category deleted", slog.Int64("id", id))
	return nil
}

func (s *TaxonomyService) CreateLanguage(ctx context.Context, name string) (*model.Language, error) {
	name, err := validateTaxonName(name)
	if err != nil {
		return nil, err
	}

	l := &model.Language{Name: name, Slug: Slugify(name)}
	if err := s.repo.CreateLanguage(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info("language created", slog.Int64("id", l.ID), slog.String("name", l.Name))
	return l, nil
}

func (s *TaxonomyService) ListLanguages(ctx context.Context) ([]model.Language, error) {
	return s.repo.ListLanguages(ctx)
}

func (s *TaxonomyService) DeleteLanguage(ctx context.Context, id int64) error {
	if err := s.repo.DeleteLanguage(ctx, id); err != nil {
		return err
	}
	s.logger.Info("language deleted", slog.Int64("id", id))
	return nil
}
