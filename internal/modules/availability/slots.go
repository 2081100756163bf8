package availability

import (
	"fmt"
	"sort"
	"time"

	"servicehub/internal/domain"
)

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04"
	dayMinutes  = 24 * 60
)

type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// ParseDate parses a timezone-naive calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrValidation, s)
	}
	return d, nil
}

// ParseClock converts a start time HH:MM (00:00 to 23:59) into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil || len(s) != len(clockLayout) {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", domain.ErrValidation, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseEndClock is ParseClock for window ends, where "24:00" means end of day.
func ParseEndClock(s string) (int, error) {
	if s == "24:00" {
		return dayMinutes, nil
	}
	return ParseClock(s)
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

type window struct {
	start, end, step int
}

func toWindow(a domain.Availability) (window, error) {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return window{}, err
	}
	end, err := ParseEndClock(a.EndTime)
	if err != nil {
		return window{}, err
	}
	if start >= end {
		return window{}, fmt.Errorf("%w: start %s must be before end %s", domain.ErrValidation, a.StartTime, a.EndTime)
	}
	if a.SlotDuration <= 0 {
		return window{}, fmt.Errorf("%w: slot duration must be positive", domain.ErrValidation)
	}
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return window{}, fmt.Errorf("%w: day of week %d out of range", domain.ErrValidation, a.DayOfWeek)
	}
	return window{start: start, end: end, step: a.SlotDuration}, nil
}

type slotAt struct {
	start int
	slot  TimeSlot
}

// BuildSlots cuts each entry into whole slots of its duration (a trailing
// partial slot is dropped) and marks a slot taken when a booked start time
// falls inside it. The result is ascending by start; equal starts keep entry order.
// Malformed entries are skipped.
func BuildSlots(entries []domain.Availability, booked []string) []TimeSlot {
	taken := make([]int, 0, len(booked))
	for _, b := range booked {
		if m, err := ParseClock(b); err == nil {
			taken = append(taken, m)
		}
	}

	all := make([]slotAt, 0)
	for _, e := range entries {
		w, err := toWindow(e)
		if err != nil {
			continue
		}
		for t := w.start; t+w.step <= w.end; t += w.step {
			all = append(all, slotAt{
				start: t,
				slot: TimeSlot{
					StartTime: formatClock(t),
					EndTime:   formatClock(t + w.step),
					Available: !anyWithin(taken, t, t+w.step),
				},
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start < all[j].start })

	out := make([]TimeSlot, 0, len(all))
	for _, s := range all {
		out = append(out, s.slot)
	}
	return out
}

func anyWithin(points []int, from, to int) bool {
	for _, p := range points {
		if p >= from && p < to {
			return true
		}
	}
	return false
}

// HasAvailable reports whether any slot is free; with at != "" the slot starting at that time must be free.
func HasAvailable(slots []TimeSlot, at string) bool {
	for _, s := range slots {
		if !s.Available {
			continue
		}
		if at == "" || s.StartTime == at {
			return true
		}
	}
	return false
}

// ValidateSchedule checks a weekly schedule before it is stored: well-formed
// entries and no overlapping windows on the same day.
func ValidateSchedule(entries []domain.Availability) error {
	byDay := make(map[int][]window)
	for _, e := range entries {
		w, err := toWindow(e)
		if err != nil {
			return err
		}
		for _, other := range byDay[e.DayOfWeek] {
			if w.start < other.end && other.start < w.end {
				return fmt.Errorf("%w: overlapping windows on day %d", domain.ErrValidation, e.DayOfWeek)
			}
		}
		byDay[e.DayOfWeek] = append(byDay[e.DayOfWeek], w)
	}
	return nil
}
