package service

import (
	"context"
	"errors"
	"time"

	"github.com/closet/internal/db"
	"github.com/closet/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultOutfitHistory = 30
	maxOutfitHistory     = 366
)

// OutfitService records which garments an owner wore on a given day.
// Registration and feedback for one (owner, day) are serialised through dayLocks;
// the unique (user_id, outfit_date) index backs that up across processes.
type OutfitService struct {
	db       *gorm.DB
	log      *logger.Logger
	dayLocks *keyedMutex
	timeout  time.Duration
}

func NewOutfitService(gdb *gorm.DB, log *logger.Logger) *OutfitService {
	return &OutfitService{
		db:       gdb,
		log:      logger.OrNop(log).With("service", "outfit"),
		dayLocks: newKeyedMutex(),
		timeout:  5 * time.Second,
	}
}

func (s *OutfitService) SetStoreTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// dayKey normalises a day to midnight UTC using the wall date t carries.
// Values from comfort.ParseDay / comfort.Day pass through unchanged.
func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayLockKey(owner string, day time.Time) string {
	return owner + "|" + day.Format("2006-01-02")
}

// uniqueIDs keeps the first occurrence of every id, in order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Register creates or replaces the outfit for (owner, day).
// Every id must belong to owner; nothing is written unless all of them do.
func (s *OutfitService) Register(ctx context.Context, owner string, day time.Time, garmentIDs []uint) (*db.OutfitSession, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	ids := uniqueIDs(garmentIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	for _, id := range ids {
		if id == 0 {
			return nil, ErrInvalidReference
		}
	}

	key := dayKey(day)
	unlock := s.dayLocks.Lock(dayLockKey(owner, key))
	defer unlock()

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var owned int64
	if err := s.db.WithContext(ctx).Model(&db.Garment{}).
		Where("user_id = ? AND id IN ?", owner, ids).
		Count(&owned).Error; err != nil {
		return nil, persistenceError("check garment ownership", err)
	}
	if owned != int64(len(ids)) {
		return nil, ErrInvalidReference
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := db.OutfitSession{UserID: owner, OutfitDate: key}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "outfit_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(&session).Error; err != nil {
			return err
		}

		// The upsert does not report the id of an existing row reliably; read it back.
		var stored db.OutfitSession
		if err := tx.Where("user_id = ? AND outfit_date = ?", owner, key).First(&stored).Error; err != nil {
			return err
		}

		if err := tx.Where("outfit_id = ?", stored.ID).Delete(&db.OutfitItem{}).Error; err != nil {
			return err
		}

		items := make([]db.OutfitItem, len(ids))
		for i, id := range ids {
			items[i] = db.OutfitItem{OutfitID: stored.ID, GarmentID: id, Position: i}
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, persistenceError("register outfit", err)
	}

	session, err := s.load(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	s.log.Info("outfit registered", "owner", owner, "date", key.Format("2006-01-02"), "garments", len(ids))
	return session, nil
}

// Get returns the outfit for (owner, day) or ErrOutfitNotFound.
func (s *OutfitService) Get(ctx context.Context, owner string, day time.Time) (*db.OutfitSession, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	return s.load(ctx, owner, dayKey(day))
}

// ListRecent returns the owner's most recent outfits, newest day first.
func (s *OutfitService) ListRecent(ctx context.Context, owner string, limit int) ([]db.OutfitSession, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = defaultOutfitHistory
	}
	if limit > maxOutfitHistory {
		limit = maxOutfitHistory
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var sessions []db.OutfitSession
	if err := s.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("user_id = ?", owner).
		Order("outfit_date DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, persistenceError("list outfits", err)
	}
	return sessions, nil
}

func (s *OutfitService) load(ctx context.Context, owner string, key time.Time) (*db.OutfitSession, error) {
	var session db.OutfitSession
	if err := s.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("user_id = ? AND outfit_date = ?", owner, key).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutfitNotFound
		}
		return nil, persistenceError("get outfit", err)
	}
	return &session, nil
}

// lockDay is used by feedback so that it never interleaves with a re-registration.
func (s *OutfitService) lockDay(owner string, day time.Time) func() {
	return s.dayLocks.Lock(dayLockKey(owner, dayKey(day)))
}
