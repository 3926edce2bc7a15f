package service

import (
	"context"
	"errors"
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
	"github.com/closet/internal/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FeedbackPolicyAccumulate = "accumulate"
	FeedbackPolicyOnce       = "once"

	adjustmentUpdated = "updated"
	adjustmentSkipped = "skipped"
	adjustmentFailed  = "failed"
)

// GarmentAdjustment is one garment whose comfort temperature was written.
type GarmentAdjustment struct {
	GarmentID uint
	Before    int
	After     int
	Delta     int
}

// GarmentFailure is one garment whose update could not be persisted.
type GarmentFailure struct {
	GarmentID uint
	Err       error
}

// AdjustmentResult reports the outcome of a feedback submission per garment,
// so callers can tell "nothing happened" from "partially happened".
type AdjustmentResult struct {
	Date    time.Time
	Rating  int
	Factor  float64
	Updated []GarmentAdjustment
	Skipped []uint
	Failed  []GarmentFailure
}

// UpdatedIDs lists the garments that were adjusted, in outfit order.
func (r *AdjustmentResult) UpdatedIDs() []uint {
	ids := make([]uint, len(r.Updated))
	for i, adj := range r.Updated {
		ids[i] = adj.GarmentID
	}
	return ids
}

// Partial reports whether some, but not all, garments failed.
func (r *AdjustmentResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Updated)+len(r.Skipped) > 0
}

// FeedbackService turns a post-wear rating into comfort temperature adjustments
// for every garment of the day's outfit.
type FeedbackService struct {
	db       *gorm.DB
	outfits  *OutfitService
	garments *GarmentService
	table    *comfort.Table
	log      *logger.Logger
	policy   string
	workers  int
	timeout  time.Duration
}

func NewFeedbackService(gdb *gorm.DB, outfits *OutfitService, garments *GarmentService, table *comfort.Table, log *logger.Logger) *FeedbackService {
	if table == nil {
		table = comfort.DefaultTable()
	}
	return &FeedbackService{
		db:       gdb,
		outfits:  outfits,
		garments: garments,
		table:    table,
		log:      logger.OrNop(log).With("service", "feedback"),
		policy:   FeedbackPolicyAccumulate,
		workers:  4,
		timeout:  5 * time.Second,
	}
}

// SetPolicy selects how repeated submissions for one day behave. Unknown values keep accumulate.
func (s *FeedbackService) SetPolicy(policy string) {
	if policy == FeedbackPolicyOnce {
		s.policy = FeedbackPolicyOnce
		return
	}
	s.policy = FeedbackPolicyAccumulate
}

func (s *FeedbackService) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

func (s *FeedbackService) SetStoreTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Apply validates rating, loads the day's outfit and nudges each garment.
// Validation failures and a missing outfit mutate nothing. Per-garment failures
// are collected in the result; only when every attempted update failed does
// Apply also return an ErrPersistence error.
func (s *FeedbackService) Apply(ctx context.Context, owner string, day time.Time, rating int) (*AdjustmentResult, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	factor, err := comfort.AdjustmentFactor(rating)
	if err != nil {
		return nil, err
	}

	key := dayKey(day)
	unlock := s.outfits.lockDay(owner, key)
	defer unlock()

	lookupCtx, cancel := storeContext(ctx, s.timeout)
	session, err := s.outfits.load(lookupCtx, owner, key)
	if err == nil && s.policy == FeedbackPolicyOnce {
		err = s.ensureFirstSubmission(lookupCtx, owner, key)
	}
	cancel()
	if err != nil {
		if errors.Is(err, ErrOutfitNotFound) {
			return nil, ErrNoOutfitForDate
		}
		return nil, err
	}

	ids := session.GarmentIDs()
	outcomes := make([]db.FeedbackAdjustment, len(ids))
	categories, err := s.categories(ctx, owner, ids)
	if err != nil {
		return nil, err
	}
	entry, err := s.claim(ctx, owner, key, rating)
	if err != nil {
		return nil, err
	}

	failures := make([]error, len(ids))
	var group errgroup.Group
	group.SetLimit(s.workers)
	for i, id := range ids {
		group.Go(func() error {
			// Each worker owns index i; failures are reported per garment, never through the group.
			outcomes[i], failures[i] = s.adjustOne(ctx, owner, id, factor, categories)
			return nil
		})
	}
	_ = group.Wait()

	result := &AdjustmentResult{Date: key, Rating: rating, Factor: factor}
	var firstErr error
	for i, outcome := range outcomes {
		switch outcome.Status {
		case adjustmentUpdated:
			result.Updated = append(result.Updated, GarmentAdjustment{
				GarmentID: outcome.GarmentID,
				Before:    outcome.Before,
				After:     outcome.After,
				Delta:     outcome.Delta,
			})
		case adjustmentSkipped:
			result.Skipped = append(result.Skipped, outcome.GarmentID)
		default:
			if firstErr == nil {
				firstErr = failures[i]
			}
			result.Failed = append(result.Failed, GarmentFailure{GarmentID: outcome.GarmentID, Err: failures[i]})
		}
	}

	if len(result.Failed) > 0 && len(result.Updated) == 0 && len(result.Skipped) == 0 {
		s.log.Error("feedback failed for every garment", "owner", owner, "date", key.Format(comfort.DayLayout), "error", firstErr)
		s.release(ctx, entry)
		return result, persistenceError("apply feedback", firstErr)
	}

	s.complete(ctx, entry, outcomes)
	s.log.Info("feedback applied",
		"owner", owner,
		"date", key.Format(comfort.DayLayout),
		"rating", rating,
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}

// categories loads the category of every listed garment the owner still has.
func (s *FeedbackService) categories(ctx context.Context, owner string, ids []uint) (map[uint]comfort.Category, error) {
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var rows []db.Garment
	if err := s.db.WithContext(ctx).Select("id", "category").
		Where("user_id = ? AND id IN ?", owner, ids).
		Find(&rows).Error; err != nil {
		return nil, persistenceError("load garment categories", err)
	}
	out := make(map[uint]comfort.Category, len(rows))
	for _, row := range rows {
		out[row.ID] = comfort.NormalizeCategory(row.Category)
	}
	return out, nil
}

func (s *FeedbackService) adjustOne(ctx context.Context, owner string, id uint, factor float64, categories map[uint]comfort.Category) (db.FeedbackAdjustment, error) {
	category, ok := categories[id]
	if !ok {
		return db.FeedbackAdjustment{GarmentID: id, Status: adjustmentSkipped}, nil
	}

	delta := comfort.Delta(factor, s.table.Weight(category))
	before, after, found, err := s.garments.adjustComfort(ctx, owner, id, delta)
	switch {
	case err != nil:
		s.log.Warn("garment adjustment failed", "owner", owner, "garment_id", id, "error", err)
		return db.FeedbackAdjustment{GarmentID: id, Status: adjustmentFailed, Before: before, After: before, Error: err.Error()}, err
	case !found:
		return db.FeedbackAdjustment{GarmentID: id, Status: adjustmentSkipped}, nil
	default:
		return db.FeedbackAdjustment{GarmentID: id, Status: adjustmentUpdated, Before: before, After: after, Delta: after - before}, nil
	}
}

func (s *FeedbackService) ensureFirstSubmission(ctx context.Context, owner string, key time.Time) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Feedback{}).
		Where("user_id = ? AND feedback_date = ?", owner, key).
		Count(&count).Error; err != nil {
		return persistenceError("check feedback history", err)
	}
	if count > 0 {
		return ErrFeedbackAlreadyApplied
	}
	return nil
}

// claim writes the log row before any garment moves. Under the once policy the
// row is what blocks a second submission, so no adjustment runs without it.
func (s *FeedbackService) claim(ctx context.Context, owner string, key time.Time, rating int) (*db.Feedback, error) {
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	entry := &db.Feedback{UserID: owner, FeedbackDate: key, Rating: rating}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, persistenceError("record feedback", err)
	}
	return entry, nil
}

// complete stores the per-garment outcomes on the claimed row. The adjustments
// already happened, so a failed write is logged rather than returned.
func (s *FeedbackService) complete(ctx context.Context, entry *db.Feedback, outcomes []db.FeedbackAdjustment) {
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Model(&db.Feedback{}).
		Where("id = ?", entry.ID).
		Update("adjustments", datatypes.JSONSlice[db.FeedbackAdjustment](outcomes)).Error
	if err != nil {
		s.log.Error("record feedback outcomes failed", "owner", entry.UserID, "feedback_id", entry.ID, "error", err)
	}
}

// release drops the claim of a submission that changed nothing, so it can be retried.
func (s *FeedbackService) release(ctx context.Context, entry *db.Feedback) {
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Delete(&db.Feedback{}, entry.ID).Error; err != nil {
		s.log.Error("release feedback claim failed", "owner", entry.UserID, "feedback_id", entry.ID, "error", err)
	}
}

// History lists the feedback log for one day, oldest first.
func (s *FeedbackService) History(ctx context.Context, owner string, day time.Time) ([]db.Feedback, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var entries []db.Feedback
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND feedback_date = ?", owner, dayKey(day)).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, persistenceError("list feedback", err)
	}
	return entries, nil
}
