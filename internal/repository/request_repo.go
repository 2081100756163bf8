package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"servicehub/internal/domain"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err, "request "+id)
	}
	return &req, nil
}

func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, notFound(err, "request "+id)
	}
	return &req, nil
}

// UpdateVersioned writes the mutable columns of req only if the stored version
// still equals expected. On success req.Version is bumped; a lost race returns domain.ErrConflict.
func (r *RequestRepository) UpdateVersioned(ctx context.Context, req *domain.ServiceRequest, expected int64) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND version = ?", req.ID, expected).
		Updates(map[string]any{
			"provider_id":   req.ProviderID,
			"status":        req.Status,
			"rejected_by":   req.RejectedBy,
			"rating":        req.Rating,
			"feedback":      req.Feedback,
			"cancel_reason": req.CancelReason,
			"version":       expected + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: request %s changed since version %d", domain.ErrConflict, req.ID, expected)
	}
	req.Version = expected + 1
	req.UpdatedAt = now
	return nil
}

type openCount struct {
	ProviderID string
	Total      int64
}

// CountOpen returns the number of PENDING/ACCEPTED requests held by each provider.
// Providers without open requests are absent from the map.
func (r *RequestRepository) CountOpen(ctx context.Context, providerIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(providerIDs))
	if len(providerIDs) == 0 {
		return out, nil
	}

	var rows []openCount
	err := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Select("provider_id, COUNT(*) AS total").
		Where("provider_id IN ? AND status IN ?", providerIDs, domain.OpenRequestStatuses).
		Group("provider_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProviderID] = row.Total
	}
	return out, nil
}

// ListBookedTimes returns the scheduled start times (HH:MM) of open requests
// held by the provider on date.
func (r *RequestRepository) ListBookedTimes(ctx context.Context, providerID, date string) ([]string, error) {
	var times []string
	err := r.db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("provider_id = ? AND scheduled_date = ? AND scheduled_time IS NOT NULL AND status IN ?",
			providerID, date, domain.OpenRequestStatuses).
		Pluck("scheduled_time", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

type RequestFilter struct {
	ClientID   string
	ProviderID string
	Status     domain.RequestStatus
	Limit      int
	Offset     int
}

func (r *RequestRepository) List(ctx context.Context, f RequestFilter) ([]domain.ServiceRequest, error) {
	q := r.db.WithContext(ctx).Model(&domain.ServiceRequest{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ProviderID != "" {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []domain.ServiceRequest
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
