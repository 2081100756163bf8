package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"servicehub/internal/database"
	"servicehub/internal/domain"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:repository_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return NewStore(db)
}

func createRequest(t *testing.T, s *Store, providerID string, status domain.RequestStatus, date, at *string) *domain.ServiceRequest {
	t.Helper()
	req := &domain.ServiceRequest{
		ClientID:      "client-1",
		CategoryID:    "cat-1",
		ProviderID:    &providerID,
		Status:        status,
		ScheduledDate: date,
		ScheduledTime: at,
	}
	require.NoError(t, s.Requests.Create(context.Background(), req))
	return req
}

func str(v string) *string { return &v }

func TestRequestRepository_UpdateVersioned(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	req := createRequest(t, s, "p1", domain.RequestPending, nil, nil)
	require.EqualValues(t, 1, req.Version)

	stale := *req

	req.Status = domain.RequestAccepted
	require.NoError(t, s.Requests.UpdateVersioned(ctx, req, 1))
	assert.EqualValues(t, 2, req.Version)

	stale.Status = domain.RequestCancelled
	err := s.Requests.UpdateVersioned(ctx, &stale, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, got.Status)
	assert.EqualValues(t, 2, got.Version)
}

func TestRequestRepository_RejectedByRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	req := createRequest(t, s, "p1", domain.RequestPending, nil, nil)

	req.RejectedBy = req.RejectedBy.With("p1").With("p2").With("p1")
	require.NoError(t, s.Requests.UpdateVersioned(ctx, req, req.Version))

	got, err := s.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderSet{"p1", "p2"}, got.RejectedBy)
}

func TestRequestRepository_GetByIDNotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.Requests.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRepository_CountOpen(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	createRequest(t, s, "p1", domain.RequestPending, nil, nil)
	createRequest(t, s, "p1", domain.RequestAccepted, nil, nil)
	createRequest(t, s, "p1", domain.RequestCompleted, nil, nil)
	createRequest(t, s, "p2", domain.RequestCancelled, nil, nil)

	counts, err := s.Requests.CountOpen(ctx, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts["p1"])
	assert.NotContains(t, counts, "p2")
	assert.NotContains(t, counts, "p3")

	empty, err := s.Requests.CountOpen(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRequestRepository_ListBookedTimes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	createRequest(t, s, "p1", domain.RequestAccepted, str("2024-01-01"), str("10:00"))
	createRequest(t, s, "p1", domain.RequestPending, str("2024-01-01"), str("11:00"))
	createRequest(t, s, "p1", domain.RequestCancelled, str("2024-01-01"), str("12:00"))
	createRequest(t, s, "p1", domain.RequestAccepted, str("2024-01-02"), str("10:00"))
	createRequest(t, s, "p1", domain.RequestAccepted, nil, nil)

	times, err := s.Requests.ListBookedTimes(ctx, "p1", "2024-01-01")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10:00", "11:00"}, times)
}

func TestPaymentRepository_OnePerRequest(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := &domain.Payment{ServiceRequestID: "req-1", ProviderID: "p1", ClientID: "c1", Amount: 100, PlatformFee: 20, ProviderAmount: 80, FeeRateBps: 2000, Status: domain.PaymentCompleted}
	require.NoError(t, s.Payments.Create(ctx, first))

	dup := &domain.Payment{ServiceRequestID: "req-1", ProviderID: "p1", ClientID: "c1", Amount: 50, PlatformFee: 10, ProviderAmount: 40, FeeRateBps: 2000, Status: domain.PaymentCompleted}
	assert.ErrorIs(t, s.Payments.Create(ctx, dup), ErrDuplicate)

	got, err := s.Payments.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestPaymentRepository_Totals(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i, st := range []domain.PaymentStatus{domain.PaymentCompleted, domain.PaymentPaidToProvider, domain.PaymentRefunded} {
		p := &domain.Payment{
			ServiceRequestID: fmt.Sprintf("req-%d", i),
			ProviderID:       "p1",
			ClientID:         "c1",
			Amount:           100,
			PlatformFee:      20,
			ProviderAmount:   80,
			FeeRateBps:       2000,
			Status:           st,
		}
		require.NoError(t, s.Payments.Create(ctx, p))
	}

	totals, err := s.Payments.Totals(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 200, totals.TotalRevenue, 0.001)
	assert.InDelta(t, 40, totals.PlatformFees, 0.001)
	assert.InDelta(t, 80, totals.PendingPayouts, 0.001)
	assert.InDelta(t, 80, totals.CompletedPayouts, 0.001)
	assert.EqualValues(t, 3, totals.TotalTransactions)
}

func TestTransaction_RollsBack(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	req := createRequest(t, s, "p1", domain.RequestPending, nil, nil)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		locked, err := tx.Requests.GetByIDForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.RequestCancelled
		if err := tx.Requests.UpdateVersioned(ctx, locked, locked.Version); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	assert.EqualValues(t, 1, got.Version)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: categories.name")))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))

	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsSerializationFailure(errors.New("x")))
}

func TestTransaction_RetriesSerializationFailure(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	req := createRequest(t, s, "p1", domain.RequestPending, nil, nil)

	calls := 0
	err := s.Transaction(ctx, func(tx *Store) error {
		calls++
		locked, err := tx.Requests.GetByIDForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.RequestAccepted
		if err := tx.Requests.UpdateVersioned(ctx, locked, locked.Version); err != nil {
			return err
		}
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// the first attempt rolled back, so only one version bump landed
	got, err := s.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, got.Status)
	assert.EqualValues(t, 2, got.Version)
}

func TestTransaction_GivesUpAfterRepeatedSerializationFailures(t *testing.T) {
	s := setupStore(t)

	calls := 0
	err := s.Transaction(context.Background(), func(tx *Store) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, serializationAttempts, calls)
}

func TestTransaction_NestedDoesNotRetry(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	outer, inner := 0, 0
	err := s.Transaction(ctx, func(tx *Store) error {
		outer++
		nestedErr := tx.Transaction(ctx, func(*Store) error {
			inner++
			return &pgconn.PgError{Code: "40001"}
		})
		assert.True(t, IsSerializationFailure(nestedErr))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outer)
	assert.Equal(t, 1, inner)
}

func TestTransaction_DoesNotRetryOtherErrors(t *testing.T) {
	s := setupStore(t)

	calls := 0
	boom := errors.New("boom")
	err := s.Transaction(context.Background(), func(*Store) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
