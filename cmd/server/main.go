package main

import (
	"context"
	"log"

	"github.com/closet/internal/app"
	"github.com/closet/internal/config"
	"github.com/closet/internal/handler"
	"github.com/closet/internal/logger"
	"github.com/closet/internal/router"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	gin.SetMode(cfg.GinMode)

	a, err := app.New(context.Background(), cfg, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize application", "error", err)
	}
	defer a.Close()

	if cfg.WeatherAPIKey == "" {
		appLog.Warn("OPENWEATHERMAP_API_KEY is not set, /api/weather will answer 503")
	}

	api := handler.NewAPI(a.DB, a.Dependencies())
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		UploadDir:     uploadDir(cfg),
		UploadURLPath: cfg.UploadURLPath,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        appLog,
	})

	appLog.Info("server listening", "addr", cfg.ListenAddr, "db", cfg.DatabaseDriver, "images", cfg.ImageStore)
	if err := r.Run(cfg.ListenAddr); err != nil {
		appLog.Fatal("failed to run server", "error", err)
	}
}

// uploadDir is only served statically when images live on local disk.
func uploadDir(cfg config.AppConfig) string {
	if cfg.ImageStore != config.ImageStoreLocal {
		return ""
	}
	return cfg.UploadDir
}
