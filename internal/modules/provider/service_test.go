package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/repository"
)

type mockProviderRepo struct {
	provider  *domain.ServiceProvider
	created   []*domain.ServiceProvider
	getErr    error
	createErr error
	updateErr error
	updates   int
}

func (m *mockProviderRepo) Create(ctx context.Context, p *domain.ServiceProvider) error {
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = "prov-new"
	m.created = append(m.created, p)
	return nil
}

func (m *mockProviderRepo) GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.provider
	return &cp, nil
}

func (m *mockProviderRepo) GetByUserID(ctx context.Context, userID string) (*domain.ServiceProvider, error) {
	return m.GetByID(ctx, "")
}

func (m *mockProviderRepo) ListByStatus(ctx context.Context, status domain.ProviderStatus, offset, limit int) ([]domain.ServiceProvider, int64, error) {
	return nil, 0, nil
}

func (m *mockProviderRepo) Update(ctx context.Context, p *domain.ServiceProvider) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates++
	m.provider = p
	return nil
}

type mockCategories struct {
	err error
}

func (m mockCategories) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Category{ID: id, Name: "Cleaning"}, nil
}

type mockSchedules struct {
	saved []domain.Availability
	calls int
}

func (m *mockSchedules) ListByProvider(ctx context.Context, providerID string) ([]domain.Availability, error) {
	return m.saved, nil
}

func (m *mockSchedules) ReplaceSchedule(ctx context.Context, providerID string, entries []domain.Availability) error {
	m.calls++
	m.saved = entries
	return nil
}

func newTestService(repo *mockProviderRepo, schedules *mockSchedules) *Service {
	if schedules == nil {
		schedules = &mockSchedules{}
	}
	return NewService(repo, mockCategories{}, schedules, nil)
}

func TestApprove_Success(t *testing.T) {
	ctx := context.Background()
	repo := &mockProviderRepo{provider: &domain.ServiceProvider{ID: "prov-1", Status: domain.ProviderPending}}
	svc := newTestService(repo, nil)

	p, err := svc.Approve(ctx, "prov-1", "admin-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if p.Status != domain.ProviderApproved {
		t.Fatalf("expected status APPROVED, got %s", p.Status)
	}
	if p.ReviewedBy == nil || *p.ReviewedBy != "admin-1" {
		t.Fatalf("expected reviewed_by = admin-1, got %v", p.ReviewedBy)
	}
	if p.ReviewedAt == nil || time.Since(*p.ReviewedAt) > 10*time.Second {
		t.Fatalf("expected reviewed_at to be recent, got %v", p.ReviewedAt)
	}
	if repo.updates != 1 {
		t.Fatalf("expected one update, got %d", repo.updates)
	}
}

func TestApprove_NotPending(t *testing.T) {
	repo := &mockProviderRepo{provider: &domain.ServiceProvider{ID: "prov-1", Status: domain.ProviderRejected}}
	svc := newTestService(repo, nil)

	_, err := svc.Approve(context.Background(), "prov-1", "admin-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("expected no update, got %d", repo.updates)
	}
}

func TestRejectApplication_RequiresReason(t *testing.T) {
	repo := &mockProviderRepo{provider: &domain.ServiceProvider{ID: "prov-1", Status: domain.ProviderPending}}
	svc := newTestService(repo, nil)

	if _, err := svc.RejectApplication(context.Background(), "prov-1", "admin-1", "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	p, err := svc.RejectApplication(context.Background(), "prov-1", "admin-1", "missing documents")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if p.Status != domain.ProviderRejected || p.RejectionReason != "missing documents" {
		t.Fatalf("unexpected provider after reject: %+v", p)
	}
}

func TestSuspendAndReinstate(t *testing.T) {
	ctx := context.Background()
	repo := &mockProviderRepo{provider: &domain.ServiceProvider{ID: "prov-1", Status: domain.ProviderApproved}}
	svc := newTestService(repo, nil)

	p, err := svc.Suspend(ctx, "prov-1", "admin-1", "complaints")
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if p.Status != domain.ProviderSuspended {
		t.Fatalf("expected SUSPENDED, got %s", p.Status)
	}

	if _, err := svc.Suspend(ctx, "prov-1", "admin-1", "again"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double suspend, got %v", err)
	}

	p, err = svc.Reinstate(ctx, "prov-1", "admin-1")
	if err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if p.Status != domain.ProviderApproved || p.RejectionReason != "" {
		t.Fatalf("unexpected provider after reinstate: %+v", p)
	}
}

func TestReview_UnknownProvider(t *testing.T) {
	repo := &mockProviderRepo{getErr: domain.ErrNotFound}
	svc := newTestService(repo, nil)

	if _, err := svc.Approve(context.Background(), "nope", "admin-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	repo := &mockProviderRepo{}
	svc := newTestService(repo, nil)

	p, err := svc.Register(context.Background(), RegisterInput{
		UserID:       "user-1",
		CategoryID:   "cat-1",
		BusinessName: "  Sparkle Cleaning ",
		Price:        45,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if p.Status != domain.ProviderPending {
		t.Fatalf("expected PENDING, got %s", p.Status)
	}
	if p.BusinessName != "Sparkle Cleaning" {
		t.Fatalf("expected trimmed business name, got %q", p.BusinessName)
	}
}

func TestRegister_Rejections(t *testing.T) {
	cases := []struct {
		name string
		repo *mockProviderRepo
		cats mockCategories
		in   RegisterInput
		want error
	}{
		{
			name: "negative price",
			repo: &mockProviderRepo{},
			in:   RegisterInput{UserID: "u", CategoryID: "c", BusinessName: "b", Price: -1},
			want: domain.ErrValidation,
		},
		{
			name: "unknown category",
			repo: &mockProviderRepo{},
			cats: mockCategories{err: domain.ErrNotFound},
			in:   RegisterInput{UserID: "u", CategoryID: "c", BusinessName: "b"},
			want: domain.ErrNotFound,
		},
		{
			name: "second profile",
			repo: &mockProviderRepo{createErr: repository.ErrDuplicate},
			in:   RegisterInput{UserID: "u", CategoryID: "c", BusinessName: "b"},
			want: domain.ErrInvalidState,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.repo, tc.cats, &mockSchedules{}, nil)
			if _, err := svc.Register(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReplaceWeeklySchedule(t *testing.T) {
	schedules := &mockSchedules{}
	svc := newTestService(&mockProviderRepo{}, schedules)

	overlapping := []domain.Availability{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 60, IsAvailable: true},
		{DayOfWeek: 1, StartTime: "11:00", EndTime: "13:00", SlotDuration: 60, IsAvailable: true},
	}
	if _, err := svc.ReplaceWeeklySchedule(context.Background(), "prov-1", overlapping); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if schedules.calls != 0 {
		t.Fatalf("invalid schedule must not be stored")
	}

	valid := []domain.Availability{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 60, IsAvailable: true},
		{DayOfWeek: 2, StartTime: "11:00", EndTime: "13:00", SlotDuration: 30, IsAvailable: true},
	}
	got, err := svc.ReplaceWeeklySchedule(context.Background(), "prov-1", valid)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got) != 2 || schedules.calls != 1 {
		t.Fatalf("expected 2 stored entries in one call, got %d entries / %d calls", len(got), schedules.calls)
	}
}
