package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"servicehub/internal/domain"
	"servicehub/internal/modules/availability"
)

const DefaultConcurrencyCap = 5

// ErrIneligible explains why CheckEligible refused a provider.
var ErrIneligible = errors.New("provider not eligible")

type ProviderSource interface {
	ListApprovedByCategory(ctx context.Context, categoryID string) ([]domain.ServiceProvider, error)
}

type LoadCounter interface {
	CountOpen(ctx context.Context, providerIDs []string) (map[string]int64, error)
}

type SlotSource interface {
	SlotsFor(ctx context.Context, p *domain.ServiceProvider, date string) ([]availability.TimeSlot, error)
}

type Criteria struct {
	CategoryID    string
	ScheduledDate *string
	ScheduledTime *string
	Excluded      domain.ProviderSet
}

func (c Criteria) date() string {
	if c.ScheduledDate == nil {
		return ""
	}
	return *c.ScheduledDate
}

func (c Criteria) at() string {
	if c.ScheduledTime == nil {
		return ""
	}
	return *c.ScheduledTime
}

// Match is the outcome of a search: either a provider was found or nobody is available.
type Match struct {
	Provider *domain.ServiceProvider
}

func (m Match) Assigned() bool {
	return m.Provider != nil
}

// Matcher selects providers for requests. It never writes; callers persist the assignment.
type Matcher struct {
	providers      ProviderSource
	load           LoadCounter
	slots          SlotSource
	concurrencyCap int64
}

func NewMatcher(providers ProviderSource, load LoadCounter, slots SlotSource, concurrencyCap int) *Matcher {
	if concurrencyCap <= 0 {
		concurrencyCap = DefaultConcurrencyCap
	}
	return &Matcher{
		providers:      providers,
		load:           load,
		slots:          slots,
		concurrencyCap: int64(concurrencyCap),
	}
}

// FindBestProvider returns the highest ranked eligible provider for c.
// Ranking is rating desc, then total ratings desc, then id asc.
func (m *Matcher) FindBestProvider(ctx context.Context, c Criteria) (Match, error) {
	candidates, err := m.providers.ListApprovedByCategory(ctx, c.CategoryID)
	if err != nil {
		return Match{}, err
	}

	pool := make([]domain.ServiceProvider, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if p.Status != domain.ProviderApproved || p.CategoryID != c.CategoryID || c.Excluded.Contains(p.ID) {
			continue
		}
		pool = append(pool, p)
		ids = append(ids, p.ID)
	}
	if len(pool) == 0 {
		return Match{}, nil
	}

	open, err := m.load.CountOpen(ctx, ids)
	if err != nil {
		return Match{}, err
	}

	rank(pool)
	for i := range pool {
		p := &pool[i]
		if open[p.ID] >= m.concurrencyCap {
			continue
		}
		ok, err := m.hasSlot(ctx, p, c)
		if err != nil {
			return Match{}, err
		}
		if ok {
			return Match{Provider: p}, nil
		}
	}
	return Match{}, nil
}

// CheckEligible re-runs every eligibility rule for one provider. It is meant
// to be called inside the transaction that writes the assignment.
func (m *Matcher) CheckEligible(ctx context.Context, p *domain.ServiceProvider, c Criteria) error {
	switch {
	case p.Status != domain.ProviderApproved:
		return fmt.Errorf("%w: status %s", ErrIneligible, p.Status)
	case p.CategoryID != c.CategoryID:
		return fmt.Errorf("%w: category mismatch", ErrIneligible)
	case c.Excluded.Contains(p.ID):
		return fmt.Errorf("%w: provider rejected this request", ErrIneligible)
	}

	open, err := m.load.CountOpen(ctx, []string{p.ID})
	if err != nil {
		return err
	}
	if open[p.ID] >= m.concurrencyCap {
		return fmt.Errorf("%w: %d open requests", ErrIneligible, open[p.ID])
	}

	ok, err := m.hasSlot(ctx, p, c)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no free slot on %s", ErrIneligible, c.date())
	}
	return nil
}

func (m *Matcher) hasSlot(ctx context.Context, p *domain.ServiceProvider, c Criteria) (bool, error) {
	if c.ScheduledDate == nil {
		return true, nil
	}
	slots, err := m.slots.SlotsFor(ctx, p, c.date())
	if err != nil {
		return false, err
	}
	return availability.HasAvailable(slots, c.at()), nil
}

func rank(ps []domain.ServiceProvider) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Rating != ps[j].Rating {
			return ps[i].Rating > ps[j].Rating
		}
		if ps[i].TotalRatings != ps[j].TotalRatings {
			return ps[i].TotalRatings > ps[j].TotalRatings
		}
		return ps[i].ID < ps[j].ID
	})
}
