package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"servicehub/internal/domain"
)

type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, p *domain.ServiceProvider) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	var p domain.ServiceProvider
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, "provider "+id)
	}
	return &p, nil
}

// GetByIDForUpdate locks the provider row until the surrounding transaction ends.
func (r *ProviderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	var p domain.ServiceProvider
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "provider "+id)
	}
	return &p, nil
}

func (r *ProviderRepository) GetByUserID(ctx context.Context, userID string) (*domain.ServiceProvider, error) {
	var p domain.ServiceProvider
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err, "provider for user "+userID)
	}
	return &p, nil
}

// ListApprovedByCategory returns approved providers in matching rank order.
func (r *ProviderRepository) ListApprovedByCategory(ctx context.Context, categoryID string) ([]domain.ServiceProvider, error) {
	var out []domain.ServiceProvider
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND status = ?", categoryID, domain.ProviderApproved).
		Order("rating DESC").
		Order("total_ratings DESC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProviderRepository) ListByStatus(ctx context.Context, status domain.ProviderStatus, offset, limit int) ([]domain.ServiceProvider, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.ServiceProvider{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.ServiceProvider
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ProviderRepository) Update(ctx context.Context, p *domain.ServiceProvider) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// ApplyRating folds one rating into the running mean with a single UPDATE,
// so concurrent calls for the same provider serialize on the row.
func (r *ProviderRepository) ApplyRating(ctx context.Context, providerID string, rating int) error {
	res := r.db.WithContext(ctx).
		Model(&domain.ServiceProvider{}).
		Where("id = ?", providerID).
		Updates(map[string]any{
			"rating":        gorm.Expr("(rating * total_ratings + ?) / (total_ratings + 1)", float64(rating)),
			"total_ratings": gorm.Expr("total_ratings + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "provider "+providerID)
	}
	return nil
}
