package repository

import (
	"context"

	"gorm.io/gorm"

	"servicehub/internal/domain"
)

// Store groups the repositories over one *gorm.DB, which may be a transaction.
type Store struct {
	db   *gorm.DB
	inTx bool

	Categories   *CategoryRepository
	Providers    *ProviderRepository
	Availability *AvailabilityRepository
	Requests     *RequestRepository
	Payments     *PaymentRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Categories:   NewCategoryRepository(db),
		Providers:    NewProviderRepository(db),
		Availability: NewAvailabilityRepository(db),
		Requests:     NewRequestRepository(db),
		Payments:     NewPaymentRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// serializationAttempts bounds reruns of a top-level transaction that postgres
// aborted with a serialization failure (40001).
const serializationAttempts = 3

// Transaction runs fn with a Store bound to a single database transaction.
// fn must only use the tx store it is given and may run more than once.
// Called on a tx store it opens a savepoint and never reruns.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	run := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inner := NewStore(tx)
			inner.inTx = true
			return fn(inner)
		})
	}
	if s.inTx {
		return run()
	}

	var err error
	for attempt := 1; attempt <= serializationAttempts; attempt++ {
		err = run()
		if !IsSerializationFailure(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// ReplaceSchedule swaps a provider's weekly availability atomically.
func (s *Store) ReplaceSchedule(ctx context.Context, providerID string, entries []domain.Availability) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.Providers.GetByIDForUpdate(ctx, providerID); err != nil {
			return err
		}
		return tx.Availability.ReplaceForProvider(ctx, providerID, entries)
	})
}
