package reputation

import (
	"context"
	"fmt"

	"servicehub/internal/domain"
)

const (
	MinRating = 1
	MaxRating = 5
)

type RatingStore interface {
	ApplyRating(ctx context.Context, providerID string, rating int) error
}

type Tracker struct {
	store RatingStore
}

func NewTracker(store RatingStore) *Tracker {
	return &Tracker{store: store}
}

// UpdateRating folds one rating into the provider's running mean.
// The store applies it atomically, so concurrent calls do not lose updates.
func (t *Tracker) UpdateRating(ctx context.Context, providerID string, rating int) error {
	if err := ValidateRating(rating); err != nil {
		return err
	}
	return t.store.ApplyRating(ctx, providerID, rating)
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d, got %d", domain.ErrValidation, MinRating, MaxRating, rating)
	}
	return nil
}
