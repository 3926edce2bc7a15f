package handler

import (
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/logger"
	"github.com/closet/internal/service"
	"gorm.io/gorm"
)

// Dependencies are the collaborators NewAPI wires into the services.
// Zero values fall back to defaults suitable for a single local process.
type Dependencies struct {
	Images           service.ImageStore
	Weather          *service.WeatherService
	Table            *comfort.Table
	Location         *time.Location
	Logger           *logger.Logger
	JWTSecret        string
	TokenTTL         time.Duration
	StoreTimeout     time.Duration
	MaxImageBytes    int64
	DefaultTolerance int
	FeedbackPolicy   string
	FeedbackWorkers  int
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	users     *service.UserService
	garments  *service.GarmentService
	outfits   *service.OutfitService
	feedback  *service.FeedbackService
	weather   *service.WeatherService
	table     *comfort.Table
	location  *time.Location
	tolerance int
	maxUpload int64
	log       *logger.Logger
}

// Services is the domain layer behind the API. closetctl drives the same set.
type Services struct {
	Users    *service.UserService
	Garments *service.GarmentService
	Outfits  *service.OutfitService
	Feedback *service.FeedbackService
}

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultMaxImageBytes = 10 << 20
)

func (d Dependencies) table() *comfort.Table {
	if d.Table == nil {
		return comfort.DefaultTable()
	}
	return d.Table
}

func (d Dependencies) maxImageBytes() int64 {
	if d.MaxImageBytes <= 0 {
		return defaultMaxImageBytes
	}
	return d.MaxImageBytes
}

// NewServices wires the domain services from deps, filling the same defaults NewAPI uses.
func NewServices(gdb *gorm.DB, deps Dependencies) Services {
	log := logger.OrNop(deps.Logger)
	table := deps.table()
	images := deps.Images
	if images == nil {
		images = service.NewMemoryImageStore()
	}
	storeTimeout := deps.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}

	users := service.NewUserService(gdb, deps.JWTSecret, deps.TokenTTL, log)
	users.SetStoreTimeout(storeTimeout)

	garments := service.NewGarmentService(gdb, images, table, log)
	garments.SetStoreTimeout(storeTimeout)
	garments.SetMaxImageBytes(deps.maxImageBytes())

	outfits := service.NewOutfitService(gdb, log)
	outfits.SetStoreTimeout(storeTimeout)

	feedback := service.NewFeedbackService(gdb, outfits, garments, table, log)
	feedback.SetStoreTimeout(storeTimeout)
	feedback.SetPolicy(deps.FeedbackPolicy)
	if deps.FeedbackWorkers > 0 {
		feedback.SetWorkers(deps.FeedbackWorkers)
	}

	return Services{Users: users, Garments: garments, Outfits: outfits, Feedback: feedback}
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, deps Dependencies) *API {
	log := logger.OrNop(deps.Logger)
	services := NewServices(gdb, deps)

	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	weather := deps.Weather
	if weather == nil {
		weather = service.NewWeatherService("", "", 0, log)
	}
	tolerance := deps.DefaultTolerance
	if tolerance < 0 {
		tolerance = 0
	}
	maxImage := deps.maxImageBytes()

	return &API{
		db:        gdb,
		users:     services.Users,
		garments:  services.Garments,
		outfits:   services.Outfits,
		feedback:  services.Feedback,
		weather:   weather,
		table:     deps.table(),
		location:  location,
		tolerance: tolerance,
		// base64 inflates by a third; leave room for the other JSON fields.
		maxUpload: maxImage*4/3 + 64<<10,
		log:       log.With("component", "http"),
	}
}

// DB exposes the underlying gorm instance, used by the health check.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Users exposes the account service so tests and tools can mint tokens.
func (a *API) Users() *service.UserService {
	return a.users
}
