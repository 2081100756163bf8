package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"servicehub/internal/domain"
	"servicehub/internal/repository"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
}

type ProviderDirectory interface {
	ListApprovedByCategory(ctx context.Context, categoryID string) ([]domain.ServiceProvider, error)
}

type Service struct {
	categories CategoryRepository
	providers  ProviderDirectory
}

func NewService(categories CategoryRepository, providers ProviderDirectory) *Service {
	return &Service{categories: categories, providers: providers}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	c := &domain.Category{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Icon:        strings.TrimSpace(req.Icon),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: category %q already exists", domain.ErrValidation, name)
		}
		return nil, err
	}
	return c, nil
}

// ListProviders returns the approved providers of a category, best ranked first.
func (s *Service) ListProviders(ctx context.Context, categoryID string) ([]domain.ServiceProvider, error) {
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.providers.ListApprovedByCategory(ctx, categoryID)
}
