package app

import (
	"context"
	"fmt"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/config"
	"github.com/closet/internal/db"
	"github.com/closet/internal/handler"
	"github.com/closet/internal/logger"
	"github.com/closet/internal/service"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App holds the process-wide collaborators shared by the server and closetctl.
type App struct {
	Config  config.AppConfig
	Log     *logger.Logger
	DB      *gorm.DB
	Images  service.ImageStore
	Weather *service.WeatherService
	Table   *comfort.Table

	redis *redis.Client
}

// Services is the domain layer wired the same way the HTTP API wires it.
type Services = handler.Services

// New opens the database and builds every store the configuration asks for.
func New(ctx context.Context, cfg config.AppConfig, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)

	table, err := comfort.LoadTable(cfg.CategoryTable)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DatabasePath
	if cfg.DatabaseDriver == config.DriverPostgres {
		dsn = cfg.DatabaseDSN
	}
	if err := db.Init(cfg.DatabaseDriver, dsn); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	a := &App{Config: cfg, Log: log, DB: db.DB, Table: table}

	switch cfg.ImageStore {
	case config.ImageStoreS3:
		store, err := service.NewS3ImageStore(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return nil, err
		}
		a.Images = store
	default:
		a.Images = service.NewLocalImageStore(cfg.UploadDir, cfg.UploadURLPath)
	}

	a.Weather = service.NewWeatherService(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, log)
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, weather cache stays in memory", "addr", cfg.RedisAddr, "error", err)
			_ = a.redis.Close()
			a.redis = nil
			a.Weather.SetCache(service.NewMemoryWeatherCache(), cfg.WeatherCacheTTL)
		} else {
			a.Weather.SetCache(service.NewRedisWeatherCache(a.redis), cfg.WeatherCacheTTL)
		}
	} else {
		a.Weather.SetCache(service.NewMemoryWeatherCache(), cfg.WeatherCacheTTL)
	}

	return a, nil
}

// Dependencies translates the configuration for handler.NewAPI.
func (a *App) Dependencies() handler.Dependencies {
	return handler.Dependencies{
		Images:           a.Images,
		Weather:          a.Weather,
		Table:            a.Table,
		Location:         a.Config.Location(),
		Logger:           a.Log,
		JWTSecret:        a.Config.JWTSecret,
		TokenTTL:         a.Config.TokenTTL,
		StoreTimeout:     a.Config.StoreTimeout,
		MaxImageBytes:    a.Config.MaxImageBytes,
		DefaultTolerance: a.Config.DefaultTolerance,
		FeedbackPolicy:   a.Config.FeedbackPolicy,
		FeedbackWorkers:  a.Config.FeedbackWorkers,
	}
}

// Services builds the domain services without the HTTP layer.
func (a *App) Services() Services {
	return handler.NewServices(a.DB, a.Dependencies())
}

// Close releases the database pool and the redis client.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
