package provider

import "servicehub/internal/domain"

type RegisterRequest struct {
	CategoryID   string  `json:"category_id" binding:"required" validate:"required,max=36"`
	BusinessName string  `json:"business_name" binding:"required" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=2000"`
	Price        float64 `json:"price" validate:"gte=0"`
}

type ReviewRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AvailabilityEntry struct {
	DayOfWeek    int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required,len=5"`
	EndTime      string `json:"end_time" validate:"required,len=5"`
	SlotDuration int    `json:"slot_duration" validate:"gt=0"`
	IsAvailable  *bool  `json:"is_available"`
}

type ScheduleRequest struct {
	Entries []AvailabilityEntry `json:"entries" validate:"max=100,dive"`
}

func (r ScheduleRequest) toDomain() []domain.Availability {
	out := make([]domain.Availability, 0, len(r.Entries))
	for _, e := range r.Entries {
		available := true
		if e.IsAvailable != nil {
			available = *e.IsAvailable
		}
		out = append(out, domain.Availability{
			DayOfWeek:    e.DayOfWeek,
			StartTime:    e.StartTime,
			EndTime:      e.EndTime,
			SlotDuration: e.SlotDuration,
			IsAvailable:  available,
		})
	}
	return out
}
