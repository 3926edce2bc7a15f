package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
	"github.com/closet/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

const (
	GarmentSortNewest      = "newest"
	GarmentSortCategory    = "category"
	GarmentSortTemperature = "temperature"
)

var (
	ErrGarmentNameRequired = errors.New("garment name is required")
	ErrCategoryRequired    = errors.New("garment category is required")
	ErrTemperatureRequired = errors.New("comfort temperature is required")
	ErrInvalidSort         = errors.New("unsupported sort order")
)

// GarmentInput carries the fields of a new garment. Image holds the raw upload bytes.
type GarmentInput struct {
	Name               string
	Category           string
	ComfortTemperature *int
	Image              []byte
}

// GarmentUpdate carries a partial edit; nil fields are left untouched.
type GarmentUpdate struct {
	Name               *string
	Category           *string
	ComfortTemperature *int
}

// GarmentFilter narrows a closet listing.
type GarmentFilter struct {
	Category string
	Sort     string
}

// GarmentGroup is one category section of a candidate list.
type GarmentGroup struct {
	Category comfort.Category
	Garments []db.Garment
}

// GarmentService owns garment records and their images.
// Writes to a single garment are serialised with a lock keyed by garment id,
// shared with feedback adaptation so a manual edit never loses an adjustment.
type GarmentService struct {
	db            *gorm.DB
	images        ImageStore
	table         *comfort.Table
	log           *logger.Logger
	locks         *keyedMutex
	sanitizer     *bluemonday.Policy
	timeout       time.Duration
	maxImageBytes int64
	now           func() time.Time
}

// NewGarmentService builds the service. A nil table falls back to comfort.DefaultTable.
func NewGarmentService(gdb *gorm.DB, images ImageStore, table *comfort.Table, log *logger.Logger) *GarmentService {
	if table == nil {
		table = comfort.DefaultTable()
	}
	return &GarmentService{
		db:            gdb,
		images:        images,
		table:         table,
		log:           logger.OrNop(log).With("service", "garment"),
		locks:         newKeyedMutex(),
		sanitizer:     bluemonday.StrictPolicy(),
		timeout:       5 * time.Second,
		maxImageBytes: 10 << 20,
		now:           time.Now,
	}
}

func (s *GarmentService) SetStoreTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// SetMaxImageBytes caps upload size; zero disables the cap.
func (s *GarmentService) SetMaxImageBytes(limit int64) {
	s.maxImageBytes = limit
}

// Table exposes the category table the service sorts and groups with.
func (s *GarmentService) Table() *comfort.Table {
	return s.table
}

func (s *GarmentService) cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
}

func garmentLockKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Create stores the images first, then the record. If the record write fails the images are removed again.
func (s *GarmentService) Create(ctx context.Context, owner string, input GarmentInput) (*db.Garment, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	name := s.cleanText(input.Name)
	if name == "" {
		return nil, ErrGarmentNameRequired
	}
	category := comfort.NormalizeCategory(input.Category)
	if category == "" {
		return nil, ErrCategoryRequired
	}
	if input.ComfortTemperature == nil {
		return nil, ErrTemperatureRequired
	}

	processed, err := processImage(input.Image, s.maxImageBytes)
	if err != nil {
		return nil, err
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	imageKey := newImageKey(owner, s.now(), processed.Ext)
	thumbKey := strings.TrimSuffix(imageKey, processed.Ext) + "-thumb.jpg"

	if err := s.images.Put(ctx, imageKey, processed.ContentType, processed.Data); err != nil {
		return nil, persistenceError("store image", err)
	}
	if err := s.images.Put(ctx, thumbKey, "image/jpeg", processed.Thumbnail); err != nil {
		s.removeImages(ctx, imageKey)
		return nil, persistenceError("store thumbnail", err)
	}

	garment := db.Garment{
		UserID:             owner,
		Name:               name,
		Category:           string(category),
		ComfortTemperature: *input.ComfortTemperature,
		ImageRef:           imageKey,
		ThumbRef:           thumbKey,
		ImageWidth:         processed.Width,
		ImageHeight:        processed.Height,
	}
	if err := s.db.WithContext(ctx).Create(&garment).Error; err != nil {
		s.removeImages(ctx, imageKey, thumbKey)
		return nil, persistenceError("create garment", err)
	}

	s.log.Info("garment created", "owner", owner, "garment_id", garment.ID, "category", garment.Category)
	return &garment, nil
}

// ListByOwner returns the owner's closet. The default order is newest first.
func (s *GarmentService) ListByOwner(ctx context.Context, owner string, filter GarmentFilter) ([]db.Garment, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	sortOrder := strings.ToLower(strings.TrimSpace(filter.Sort))
	if sortOrder == "" {
		sortOrder = GarmentSortNewest
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Model(&db.Garment{}).Where("user_id = ?", owner)
	if category := comfort.NormalizeCategory(filter.Category); category != "" {
		query = query.Where("category IN ?", comfort.Spellings(category))
	}

	switch sortOrder {
	case GarmentSortNewest:
		query = query.Order("created_at DESC").Order("id DESC")
	case GarmentSortTemperature:
		query = query.Order("comfort_temperature ASC").Order("id ASC")
	case GarmentSortCategory:
		query = query.Order("id ASC")
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSort, filter.Sort)
	}

	var garments []db.Garment
	if err := query.Find(&garments).Error; err != nil {
		return nil, persistenceError("list garments", err)
	}
	for i := range garments {
		normalizeStored(&garments[i])
	}

	if sortOrder == GarmentSortCategory {
		comfort.SortByCategory(garments, s.table, func(g db.Garment) comfort.Category {
			return comfort.Category(g.Category)
		})
	}
	return garments, nil
}

// Get returns one garment owned by owner. Foreign ids look exactly like missing ones.
func (s *GarmentService) Get(ctx context.Context, owner string, id uint) (*db.Garment, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	return s.find(ctx, owner, id)
}

func (s *GarmentService) find(ctx context.Context, owner string, id uint) (*db.Garment, error) {
	var garment db.Garment
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).First(&garment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGarmentNotFound
		}
		return nil, persistenceError("get garment", err)
	}
	normalizeStored(&garment)
	return &garment, nil
}

// normalizeStored maps legacy category spellings onto the known set.
func normalizeStored(garment *db.Garment) {
	garment.Category = string(comfort.NormalizeCategory(garment.Category))
}

// Update applies a partial edit under the garment lock.
func (s *GarmentService) Update(ctx context.Context, owner string, id uint, update GarmentUpdate) (*db.Garment, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	changes := map[string]interface{}{}
	if update.Name != nil {
		name := s.cleanText(*update.Name)
		if name == "" {
			return nil, ErrGarmentNameRequired
		}
		changes["name"] = name
	}
	if update.Category != nil {
		category := comfort.NormalizeCategory(*update.Category)
		if category == "" {
			return nil, ErrCategoryRequired
		}
		changes["category"] = string(category)
	}
	if update.ComfortTemperature != nil {
		changes["comfort_temperature"] = *update.ComfortTemperature
	}

	unlock := s.locks.Lock(garmentLockKey(id))
	defer unlock()

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	garment, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return garment, nil
	}

	if err := s.db.WithContext(ctx).Model(garment).Updates(changes).Error; err != nil {
		return nil, persistenceError("update garment", err)
	}
	return s.find(ctx, owner, id)
}

// Delete removes the record, then its images. Image removal failures are only logged.
func (s *GarmentService) Delete(ctx context.Context, owner string, id uint) error {
	if owner == "" {
		return ErrOwnerRequired
	}

	unlock := s.locks.Lock(garmentLockKey(id))
	defer unlock()

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	garment, err := s.find(ctx, owner, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&db.Garment{})
	if result.Error != nil {
		return persistenceError("delete garment", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGarmentNotFound
	}

	s.removeImages(ctx, garment.ImageRef, garment.ThumbRef)
	s.log.Info("garment deleted", "owner", owner, "garment_id", id)
	return nil
}

// Candidates returns the garments comfortable within tolerance of target, grouped by category.
// The index range scan narrows the rows; comfort.SelectCandidates decides membership.
func (s *GarmentService) Candidates(ctx context.Context, owner string, target, tolerance int) ([]GarmentGroup, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if tolerance < 0 {
		tolerance = 0
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	query := s.db.WithContext(ctx).Where("user_id = ?", owner)
	low, high := temperatureBounds(target, tolerance)
	if low > math.MinInt {
		query = query.Where("comfort_temperature >= ?", low)
	}
	if high < math.MaxInt {
		query = query.Where("comfort_temperature <= ?", high)
	}

	var rows []db.Garment
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, persistenceError("find candidates", err)
	}

	byID := make(map[uint]db.Garment, len(rows))
	views := make([]comfort.Garment, 0, len(rows))
	for _, row := range rows {
		normalizeStored(&row)
		byID[row.ID] = row
		views = append(views, comfort.Garment{
			ID:                 row.ID,
			Category:           comfort.Category(row.Category),
			ComfortTemperature: row.ComfortTemperature,
		})
	}

	selected := comfort.SelectCandidates(views, target, tolerance)
	grouped := comfort.GroupByCategory(selected, s.table)

	groups := make([]GarmentGroup, 0, len(grouped))
	for _, group := range grouped {
		out := GarmentGroup{Category: group.Category, Garments: make([]db.Garment, 0, len(group.Garments))}
		for _, garment := range group.Garments {
			out.Garments = append(out.Garments, byID[garment.ID])
		}
		groups = append(groups, out)
	}
	return groups, nil
}

// temperatureBounds returns target-tolerance and target+tolerance, saturated at
// the int range. tolerance must not be negative.
func temperatureBounds(target, tolerance int) (low, high int) {
	low, high = math.MinInt, math.MaxInt
	if target >= 0 || tolerance <= target-math.MinInt {
		low = target - tolerance
	}
	if target <= 0 || tolerance <= math.MaxInt-target {
		high = target + tolerance
	}
	return low, high
}

// ImageURL resolves a stored image key for clients.
func (s *GarmentService) ImageURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := s.images.URL(ctx, key)
	if err != nil {
		s.log.Warn("resolve image url failed", "key", key, "error", err)
		return ""
	}
	return url
}

// adjustComfort shifts one garment's comfort temperature by delta in a single
// UPDATE, under the garment lock. found is false when the garment no longer exists.
func (s *GarmentService) adjustComfort(ctx context.Context, owner string, id uint, delta int) (before, after int, found bool, err error) {
	unlock := s.locks.Lock(garmentLockKey(id))
	defer unlock()

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	garment, err := s.find(ctx, owner, id)
	if err != nil {
		if errors.Is(err, ErrGarmentNotFound) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	before = garment.ComfortTemperature
	if delta == 0 {
		return before, before, true, nil
	}

	result := s.db.WithContext(ctx).Model(&db.Garment{}).
		Where("id = ? AND user_id = ?", id, owner).
		Update("comfort_temperature", gorm.Expr("comfort_temperature + ?", delta))
	if result.Error != nil {
		return before, before, true, persistenceError("adjust comfort temperature", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, 0, false, nil
	}
	return before, before + delta, true, nil
}

func (s *GarmentService) removeImages(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.images.Delete(ctx, key); err != nil {
			s.log.Warn("remove image failed", "key", key, "error", err)
		}
	}
}
