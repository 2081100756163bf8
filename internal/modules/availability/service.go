package availability

import (
	"context"
	"fmt"

	"servicehub/internal/domain"
)

type ProviderReader interface {
	GetByID(ctx context.Context, id string) (*domain.ServiceProvider, error)
}

type ScheduleReader interface {
	ListForDay(ctx context.Context, providerID string, dayOfWeek int) ([]domain.Availability, error)
}

type BookingReader interface {
	ListBookedTimes(ctx context.Context, providerID, date string) ([]string, error)
}

// Index turns weekly schedules into bookable slots for a date. It holds no state
// of its own; build one per store (or per transaction).
type Index struct {
	providers ProviderReader
	schedules ScheduleReader
	bookings  BookingReader
}

func NewIndex(providers ProviderReader, schedules ScheduleReader, bookings BookingReader) *Index {
	return &Index{
		providers: providers,
		schedules: schedules,
		bookings:  bookings,
	}
}

// GetAvailableSlots returns every slot of an approved provider on date,
// with slots held by open requests marked unavailable.
func (x *Index) GetAvailableSlots(ctx context.Context, providerID, date string) ([]TimeSlot, error) {
	p, err := x.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.ProviderApproved {
		return nil, fmt.Errorf("%w: provider %s", domain.ErrNotFound, providerID)
	}
	return x.SlotsFor(ctx, p, date)
}

// SlotsFor is GetAvailableSlots for a provider the caller has already loaded and vetted.
func (x *Index) SlotsFor(ctx context.Context, p *domain.ServiceProvider, date string) ([]TimeSlot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	entries, err := x.schedules.ListForDay(ctx, p.ID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []TimeSlot{}, nil
	}

	booked, err := x.bookings.ListBookedTimes(ctx, p.ID, date)
	if err != nil {
		return nil, err
	}
	return BuildSlots(entries, booked), nil
}
