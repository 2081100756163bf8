package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
)

type fakeProviders struct {
	byID map[string]*domain.ServiceProvider
}

func (f *fakeProviders) GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeSchedules struct {
	entries []domain.Availability
	asked   []int
}

func (f *fakeSchedules) ListForDay(ctx context.Context, providerID string, dayOfWeek int) ([]domain.Availability, error) {
	f.asked = append(f.asked, dayOfWeek)
	var out []domain.Availability
	for _, e := range f.entries {
		if e.ProviderID == providerID && e.DayOfWeek == dayOfWeek && e.IsAvailable {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBookings struct {
	times map[string][]string
}

func (f *fakeBookings) ListBookedTimes(ctx context.Context, providerID, date string) ([]string, error) {
	return f.times[providerID+"|"+date], nil
}

func newTestIndex(status domain.ProviderStatus, entries []domain.Availability, booked map[string][]string) (*Index, *fakeSchedules) {
	providers := &fakeProviders{byID: map[string]*domain.ServiceProvider{
		"p1": {ID: "p1", Status: status},
	}}
	schedules := &fakeSchedules{entries: entries}
	return NewIndex(providers, schedules, &fakeBookings{times: booked}), schedules
}

func TestIndex_GetAvailableSlots_ScenarioE(t *testing.T) {
	// 2024-01-01 is a Monday
	entries := []domain.Availability{
		{ID: 1, ProviderID: "p1", DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 60, IsAvailable: true},
	}
	idx, _ := newTestIndex(domain.ProviderApproved, entries, map[string][]string{"p1|2024-01-01": {"10:00"}})

	slots, err := idx.GetAvailableSlots(context.Background(), "p1", "2024-01-01")

	require.NoError(t, err)
	assert.Equal(t, []TimeSlot{
		{StartTime: "09:00", EndTime: "10:00", Available: true},
		{StartTime: "10:00", EndTime: "11:00", Available: false},
		{StartTime: "11:00", EndTime: "12:00", Available: true},
	}, slots)
}

func TestIndex_GetAvailableSlots_UsesWeekdayOfDate(t *testing.T) {
	idx, schedules := newTestIndex(domain.ProviderApproved, nil, nil)

	// 2024-01-07 is a Sunday
	slots, err := idx.GetAvailableSlots(context.Background(), "p1", "2024-01-07")

	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
	assert.Equal(t, []int{0}, schedules.asked)
}

func TestIndex_GetAvailableSlots_IgnoresDisabledEntries(t *testing.T) {
	entries := []domain.Availability{
		{ID: 1, ProviderID: "p1", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", SlotDuration: 60, IsAvailable: false},
	}
	idx, _ := newTestIndex(domain.ProviderApproved, entries, nil)

	slots, err := idx.GetAvailableSlots(context.Background(), "p1", "2024-01-01")

	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestIndex_GetAvailableSlots_RequiresApprovedProvider(t *testing.T) {
	for _, st := range []domain.ProviderStatus{domain.ProviderPending, domain.ProviderSuspended, domain.ProviderRejected} {
		idx, _ := newTestIndex(st, nil, nil)
		_, err := idx.GetAvailableSlots(context.Background(), "p1", "2024-01-01")
		assert.ErrorIs(t, err, domain.ErrNotFound, string(st))
	}

	idx, _ := newTestIndex(domain.ProviderApproved, nil, nil)
	_, err := idx.GetAvailableSlots(context.Background(), "missing", "2024-01-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_GetAvailableSlots_BadDate(t *testing.T) {
	idx, _ := newTestIndex(domain.ProviderApproved, nil, nil)

	_, err := idx.GetAvailableSlots(context.Background(), "p1", "01/01/2024")

	assert.ErrorIs(t, err, domain.ErrValidation)
}
