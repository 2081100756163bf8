package provider

import (
	"context"

	"servicehub/internal/domain"
	"servicehub/internal/repository"
)

type ProviderRepository interface {
	Create(ctx context.Context, p *domain.ServiceProvider) error
	GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error)
	GetByUserID(ctx context.Context, userID string) (*domain.ServiceProvider, error)
	ListByStatus(ctx context.Context, status domain.ProviderStatus, offset, limit int) ([]domain.ServiceProvider, int64, error)
	Update(ctx context.Context, p *domain.ServiceProvider) error
}

type CategoryReader interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

type ScheduleStore interface {
	ListByProvider(ctx context.Context, providerID string) ([]domain.Availability, error)
	ReplaceSchedule(ctx context.Context, providerID string, entries []domain.Availability) error
}

type storeSchedules struct {
	store *repository.Store
}

// StoreSchedules adapts the repository store to ScheduleStore.
func StoreSchedules(store *repository.Store) ScheduleStore {
	return storeSchedules{store: store}
}

func (s storeSchedules) ListByProvider(ctx context.Context, providerID string) ([]domain.Availability, error) {
	return s.store.Availability.ListByProvider(ctx, providerID)
}

func (s storeSchedules) ReplaceSchedule(ctx context.Context, providerID string, entries []domain.Availability) error {
	return s.store.ReplaceSchedule(ctx, providerID, entries)
}
