package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ImageStoreLocal = "local"
	ImageStoreS3    = "s3"

	FeedbackPolicyAccumulate = "accumulate"
	FeedbackPolicyOnce       = "once"
)

// AppConfig collects everything the server and closetctl need to run.
type AppConfig struct {
	ListenAddr    string
	Port          string
	GinMode       string
	LogMode       string
	LogFile       string
	CORSOrigins   []string
	SessionSecret string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string
	StoreTimeout   time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	ImageStore    string
	UploadDir     string
	UploadURLPath string
	S3Bucket      string
	AWSRegion     string
	MaxImageBytes int64

	WeatherAPIKey   string
	WeatherBaseURL  string
	WeatherTimeout  time.Duration
	WeatherCacheTTL time.Duration
	RedisAddr       string

	Timezone         string
	CategoryTable    string
	DefaultTolerance int
	FeedbackPolicy   string
	FeedbackWorkers  int
}

// Development fallbacks. Validate refuses them when GIN_MODE is release.
const (
	DevSessionSecret = "closet-dev-secret"
	DevJWTSecret     = "closet-dev-jwt-secret"
)

// Load reads the optional .env file and the process environment, filling safe defaults for anything missing.
func Load() AppConfig {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := envString("PORT", "3001")

	listenAddr := envString("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		GinMode:       envString("GIN_MODE", "release"),
		LogMode:       envString("LOG_MODE", "production"),
		LogFile:       envString("LOG_FILE", ""),
		CORSOrigins:   envList("CORS_ORIGINS", []string{"*"}),
		SessionSecret: envString("SESSION_SECRET", DevSessionSecret),

		DatabaseDriver: strings.ToLower(envString("DATABASE_DRIVER", DriverSQLite)),
		DatabasePath:   envString("DATABASE_PATH", "closet.db"),
		DatabaseDSN:    envString("DATABASE_DSN", ""),
		StoreTimeout:   envDuration("STORE_TIMEOUT", 5*time.Second),

		JWTSecret: envString("JWT_SECRET", DevJWTSecret),
		TokenTTL:  envDuration("TOKEN_TTL", time.Hour),

		ImageStore:    strings.ToLower(envString("IMAGE_STORE", ImageStoreLocal)),
		UploadDir:     envString("UPLOAD_DIR", "data/uploads"),
		UploadURLPath: envString("UPLOAD_URL_PATH", "/uploads"),
		S3Bucket:      envString("S3_BUCKET", ""),
		AWSRegion:     envString("AWS_REGION", "ap-northeast-1"),
		MaxImageBytes: int64(envInt("MAX_IMAGE_BYTES", 10<<20)),

		WeatherAPIKey:   envString("OPENWEATHERMAP_API_KEY", ""),
		WeatherBaseURL:  envString("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		WeatherTimeout:  envDuration("WEATHER_TIMEOUT", 10*time.Second),
		WeatherCacheTTL: envDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		RedisAddr:       envString("REDIS_ADDR", ""),

		Timezone:         envString("TIMEZONE", "Asia/Tokyo"),
		CategoryTable:    envString("CATEGORY_TABLE", ""),
		DefaultTolerance: envInt("DEFAULT_TOLERANCE", 5),
		FeedbackPolicy:   strings.ToLower(envString("FEEDBACK_POLICY", FeedbackPolicyAccumulate)),
		FeedbackWorkers:  envInt("FEEDBACK_WORKERS", 4),
	}
}

// Validate reports settings that cannot be defaulted away.
func (c AppConfig) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.ImageStore {
	case ImageStoreLocal:
	case ImageStoreS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when IMAGE_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported IMAGE_STORE %q", c.ImageStore))
	}

	if c.FeedbackPolicy != FeedbackPolicyAccumulate && c.FeedbackPolicy != FeedbackPolicyOnce {
		errs = append(errs, fmt.Errorf("unsupported FEEDBACK_POLICY %q", c.FeedbackPolicy))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.GinMode == "release" {
		if c.JWTSecret == DevJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in release mode"))
		}
		if c.SessionSecret == DevSessionSecret {
			errs = append(errs, errors.New("SESSION_SECRET must be set in release mode"))
		}
	}

	if c.DefaultTolerance < 0 {
		errs = append(errs, errors.New("DEFAULT_TOLERANCE must not be negative"))
	}

	return errors.Join(errs...)
}

// Location resolves the owner reference timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
