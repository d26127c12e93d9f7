package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chautari/chautari/internal/domain"
	"github.com/chautari/chautari/internal/repository"
	apperrors "github.com/chautari/chautari/pkg/errors"
	"github.com/chautari/chautari/pkg/slug"
)

// CategoryService implements the business logic for categories. Mutations
// are restricted to staff at the transport layer.
type CategoryService struct {
	categories repository.CategoryRepository
	logger     *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(categories repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		logger:     logger,
	}
}

// List returns all categories ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Create adds a new category. The slug is derived from the name.
func (s *CategoryService) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required").WithField("name", "must not be empty")
	}

	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        slug.Generate(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

// Delete removes a category. It fails with a conflict while listings still
// reference it.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// Seed inserts the default categories, skipping any that already exist.
// Used by the seed command; safe to run repeatedly.
func (s *CategoryService) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, name := range domain.DefaultCategoryNames {
		_, err := s.Create(ctx, name, "")
		if err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				continue
			}
			return created, fmt.Errorf("seed category %q: %w", name, err)
		}
		created++
	}

	s.logger.InfoContext(ctx, "seeded categories", slog.Int("created", created))
	return created, nil
}
