package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/closet/internal/comfort"
)

var (
	// ErrInvalidReference is returned when a garment id is missing or belongs to another owner.
	ErrInvalidReference = errors.New("garment does not belong to owner")
	// ErrEmptySelection is returned when an outfit registration carries no garments.
	ErrEmptySelection = errors.New("outfit must contain at least one garment")
	// ErrNoOutfitForDate is returned when feedback arrives for a day without an outfit.
	ErrNoOutfitForDate = errors.New("no outfit registered for date")
	// ErrGarmentNotFound is the NotFound case for garments.
	ErrGarmentNotFound = errors.New("garment not found")
	// ErrOutfitNotFound is the NotFound case for outfit sessions.
	ErrOutfitNotFound = errors.New("outfit not found")
	// ErrPersistence wraps recoverable storage failures; callers may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = comfort.ErrInvalidRating
	// ErrFeedbackAlreadyApplied is returned under the "once" policy for a repeated submission.
	ErrFeedbackAlreadyApplied = errors.New("feedback already submitted for date")
	// ErrOwnerRequired guards every owner-scoped call against an empty owner id.
	ErrOwnerRequired = errors.New("owner is required")
)

// persistenceError tags a storage error so handlers can tell a retryable failure
// from a validation one. Deadline expiry counts as a storage failure.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out: %v", ErrPersistence, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// storeContext bounds a storage call. A zero timeout leaves ctx as is.
func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
