package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"servicehub/internal/domain"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, "payment "+id)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "payment "+id)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("service_request_id = ?", requestID).First(&p).Error; err != nil {
		return nil, notFound(err, "payment for request "+requestID)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByRequestIDForUpdate(ctx context.Context, requestID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("service_request_id = ?", requestID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "payment for request "+requestID)
	}
	return &p, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PaymentRepository) List(ctx context.Context, status domain.PaymentStatus, offset, limit int) ([]domain.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Payment{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Payment
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type PaymentTotals struct {
	TotalRevenue      float64 `json:"total_revenue"`
	PlatformFees      float64 `json:"platform_fees"`
	PendingPayouts    float64 `json:"pending_payouts"`
	CompletedPayouts  float64 `json:"completed_payouts"`
	TotalTransactions int64   `json:"total_transactions"`
}

// Totals aggregates the ledger. Revenue and fees count captured money only
// (COMPLETED and PAID_TO_PROVIDER); refunded and failed rows are excluded.
func (r *PaymentRepository) Totals(ctx context.Context) (*PaymentTotals, error) {
	var t PaymentTotals
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN amount ELSE 0 END), 0) AS total_revenue,
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN platform_fee ELSE 0 END), 0) AS platform_fees,
			COALESCE(SUM(CASE WHEN status = ? THEN provider_amount ELSE 0 END), 0) AS pending_payouts,
			COALESCE(SUM(CASE WHEN status = ? THEN provider_amount ELSE 0 END), 0) AS completed_payouts,
			COUNT(*) AS total_transactions
		FROM payments`,
		domain.PaymentCompleted, domain.PaymentPaidToProvider,
		domain.PaymentCompleted, domain.PaymentPaidToProvider,
		domain.PaymentCompleted,
		domain.PaymentPaidToProvider,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
