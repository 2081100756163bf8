package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/modules/availability"
	"servicehub/internal/repository"
)

type Service struct {
	providers  ProviderRepository
	categories CategoryReader
	schedules  ScheduleStore
	now        func() time.Time
	loggerf    func(format string, args ...interface{})
}

func NewService(providers ProviderRepository, categories CategoryReader, schedules ScheduleStore, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		providers:  providers,
		categories: categories,
		schedules:  schedules,
		now:        func() time.Time { return time.Now().UTC() },
		loggerf:    loggerf,
	}
}

type RegisterInput struct {
	UserID       string
	CategoryID   string
	BusinessName string
	Description  string
	Price        float64
}

// Register files a provider application. It starts PENDING and is invisible
// to matching until an admin approves it. One profile per user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.ServiceProvider, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if in.BusinessName == "" {
		return nil, fmt.Errorf("%w: business name is required", domain.ErrValidation)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p := &domain.ServiceProvider{
		UserID:       in.UserID,
		CategoryID:   in.CategoryID,
		Status:       domain.ProviderPending,
		BusinessName: in.BusinessName,
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
	}
	if err := s.providers.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user %s already has a provider profile", domain.ErrInvalidState, in.UserID)
		}
		return nil, err
	}

	s.loggerf("level=info msg=provider_registered provider_id=%s user_id=%s category_id=%s", p.ID, p.UserID, p.CategoryID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, providerID string) (*domain.ServiceProvider, error) {
	return s.providers.GetByID(ctx, providerID)
}

func (s *Service) GetByUser(ctx context.Context, userID string) (*domain.ServiceProvider, error) {
	return s.providers.GetByUserID(ctx, userID)
}

func (s *Service) ListByStatus(ctx context.Context, status domain.ProviderStatus, page, limit int) ([]domain.ServiceProvider, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.providers.ListByStatus(ctx, status, (page-1)*limit, limit)
}

// Approve admits a PENDING application.
func (s *Service) Approve(ctx context.Context, providerID, adminID string) (*domain.ServiceProvider, error) {
	return s.review(ctx, providerID, adminID, "approve", func(p *domain.ServiceProvider) error {
		if p.Status != domain.ProviderPending {
			return fmt.Errorf("%w: provider %s is %s, want %s", domain.ErrInvalidState, p.ID, p.Status, domain.ProviderPending)
		}
		p.Status = domain.ProviderApproved
		p.RejectionReason = ""
		return nil
	})
}

func (s *Service) RejectApplication(ctx context.Context, providerID, adminID, reason string) (*domain.ServiceProvider, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	return s.review(ctx, providerID, adminID, "reject", func(p *domain.ServiceProvider) error {
		if p.Status != domain.ProviderPending {
			return fmt.Errorf("%w: provider %s is %s, want %s", domain.ErrInvalidState, p.ID, p.Status, domain.ProviderPending)
		}
		p.Status = domain.ProviderRejected
		p.RejectionReason = reason
		return nil
	})
}

// Suspend removes an APPROVED provider from matching. Requests already assigned stay with it.
func (s *Service) Suspend(ctx context.Context, providerID, adminID, reason string) (*domain.ServiceProvider, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	return s.review(ctx, providerID, adminID, "suspend", func(p *domain.ServiceProvider) error {
		if p.Status != domain.ProviderApproved {
			return fmt.Errorf("%w: provider %s is %s, want %s", domain.ErrInvalidState, p.ID, p.Status, domain.ProviderApproved)
		}
		p.Status = domain.ProviderSuspended
		p.RejectionReason = reason
		return nil
	})
}

func (s *Service) Reinstate(ctx context.Context, providerID, adminID string) (*domain.ServiceProvider, error) {
	return s.review(ctx, providerID, adminID, "reinstate", func(p *domain.ServiceProvider) error {
		if p.Status != domain.ProviderSuspended {
			return fmt.Errorf("%w: provider %s is %s, want %s", domain.ErrInvalidState, p.ID, p.Status, domain.ProviderSuspended)
		}
		p.Status = domain.ProviderApproved
		p.RejectionReason = ""
		return nil
	})
}

func (s *Service) review(ctx context.Context, providerID, adminID, action string, apply func(p *domain.ServiceProvider) error) (*domain.ServiceProvider, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, fmt.Errorf("%w: admin id is required", domain.ErrValidation)
	}

	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	from := p.Status
	if err := apply(p); err != nil {
		return nil, err
	}

	now := s.now()
	p.ReviewedBy = &adminID
	p.ReviewedAt = &now
	if err := s.providers.Update(ctx, p); err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=provider_reviewed action=%s provider_id=%s admin_id=%s from=%s to=%s", action, p.ID, adminID, from, p.Status)
	return p, nil
}

func (s *Service) WeeklySchedule(ctx context.Context, providerID string) ([]domain.Availability, error) {
	return s.schedules.ListByProvider(ctx, providerID)
}

// ReplaceWeeklySchedule validates every entry and swaps the provider's schedule in one go.
func (s *Service) ReplaceWeeklySchedule(ctx context.Context, providerID string, entries []domain.Availability) ([]domain.Availability, error) {
	if err := availability.ValidateSchedule(entries); err != nil {
		return nil, err
	}
	if err := s.schedules.ReplaceSchedule(ctx, providerID, entries); err != nil {
		return nil, err
	}
	s.loggerf("level=info msg=schedule_replaced provider_id=%s entries=%d", providerID, len(entries))
	return s.schedules.ListByProvider(ctx, providerID)
}
