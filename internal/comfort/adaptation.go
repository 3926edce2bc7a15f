package comfort

import (
	"errors"
	"fmt"
	"math"
)

const (
	MinRating     = 1
	NeutralRating = 3
	MaxRating     = 5
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// AdjustmentFactor maps a rating on the 1 (too cold) .. 5 (too hot) scale to a
// signed nudge: +1.0 for too cold, 0 for neutral, -1.0 for too hot.
func AdjustmentFactor(rating int) (float64, error) {
	if rating < MinRating || rating > MaxRating {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return float64(NeutralRating-rating) * 0.5, nil
}

// Delta scales factor by a category weight and rounds half away from zero, so
// -0.5 becomes -1 and 0.5 becomes 1.
func Delta(factor, weight float64) int {
	return int(math.Round(factor * weight))
}

// Adjust computes the new comfort temperature for one garment.
func Adjust(rating int, category Category, current int, table *Table) (next, delta int, err error) {
	factor, err := AdjustmentFactor(rating)
	if err != nil {
		return current, 0, err
	}
	delta = Delta(factor, table.Weight(category))
	return current + delta, delta, nil
}
