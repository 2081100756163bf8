package repository

import (
	"context"

	"gorm.io/gorm"

	"servicehub/internal/domain"
)

type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListForDay returns the provider's enabled windows for a weekday in insertion order.
func (r *AvailabilityRepository) ListForDay(ctx context.Context, providerID string, dayOfWeek int) ([]domain.Availability, error) {
	var out []domain.Availability
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND day_of_week = ? AND is_available = ?", providerID, dayOfWeek, true).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AvailabilityRepository) ListByProvider(ctx context.Context, providerID string) ([]domain.Availability, error) {
	var out []domain.Availability
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("day_of_week ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceForProvider swaps the whole weekly schedule. Call it inside a transaction.
func (r *AvailabilityRepository) ReplaceForProvider(ctx context.Context, providerID string, entries []domain.Availability) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("provider_id = ?", providerID).Delete(&domain.Availability{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].ID = 0
		entries[i].ProviderID = providerID
	}
	return db.Create(&entries).Error
}
