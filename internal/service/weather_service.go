package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/closet/internal/logger"
)

var (
	ErrWeatherAPIKeyMissing = errors.New("weather api key is not configured")
	ErrWeatherUpstream      = errors.New("weather upstream error")
	ErrInvalidCoordinates   = errors.New("invalid coordinates")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WeatherReport is the slice of an OpenWeatherMap current-weather payload the client uses.
type WeatherReport struct {
	Latitude           float64   `json:"lat"`
	Longitude          float64   `json:"lon"`
	Temperature        float64   `json:"temperature"`
	RoundedTemperature int       `json:"roundedTemperature"`
	FeelsLike          float64   `json:"feelsLike"`
	Humidity           int       `json:"humidity"`
	WindSpeed          float64   `json:"windSpeed"`
	Condition          string    `json:"condition"`
	Description        string    `json:"description"`
	Location           string    `json:"location"`
	FetchedAt          time.Time `json:"fetchedAt"`
	Cached             bool      `json:"cached"`
}

type openWeatherResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// WeatherService proxies OpenWeatherMap so the API key never reaches the client.
type WeatherService struct {
	http     httpDoer
	apiKey   string
	baseURL  string
	cache    WeatherCache
	cacheTTL time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewWeatherService(apiKey, baseURL string, timeout time.Duration, log *logger.Logger) *WeatherService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &WeatherService{
		http:     &http.Client{Timeout: timeout},
		apiKey:   strings.TrimSpace(apiKey),
		cache:    NewMemoryWeatherCache(),
		cacheTTL: 10 * time.Minute,
		log:      logger.OrNop(log).With("service", "weather"),
		now:      time.Now,
	}
	s.SetBaseURL(baseURL)
	return s
}

func (s *WeatherService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: 10 * time.Second}
		return
	}
	s.http = client
}

func (s *WeatherService) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = "https://api.openweathermap.org/data/2.5"
	}
	s.baseURL = base
}

// SetCache swaps the report cache; a zero ttl disables caching.
func (s *WeatherService) SetCache(cache WeatherCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

func weatherCacheKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 2, 64) + "," + strconv.FormatFloat(lon, 'f', 2, 64)
}

func validCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Current returns the weather at (lat, lon). Cached reports within the ttl are reused;
// cache errors are logged and the upstream is asked instead.
func (s *WeatherService) Current(ctx context.Context, lat, lon float64) (*WeatherReport, error) {
	if !validCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	if s.apiKey == "" {
		return nil, ErrWeatherAPIKeyMissing
	}

	key := weatherCacheKey(lat, lon)
	if s.cache != nil && s.cacheTTL > 0 {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("weather cache read failed", "key", key, "error", err)
		} else if cached != nil {
			cached.Cached = true
			return cached, nil
		}
	}

	report, err := s.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.log.Warn("weather cache write failed", "key", key, "error", err)
		}
	}
	return report, nil
}

func (s *WeatherService) fetch(ctx context.Context, lat, lon float64) (*WeatherReport, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("appid", s.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/weather?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "closet-weather/1.0")

	client := s.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrWeatherUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrWeatherUpstream, err)
	}

	var payload openWeatherResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrWeatherUpstream, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrWeatherUpstream, decodeErr)
	}

	report := &WeatherReport{
		Latitude:           lat,
		Longitude:          lon,
		Temperature:        payload.Main.Temp,
		RoundedTemperature: int(math.Round(payload.Main.Temp)),
		FeelsLike:          payload.Main.FeelsLike,
		Humidity:           payload.Main.Humidity,
		WindSpeed:          payload.Wind.Speed,
		Location:           payload.Name,
		FetchedAt:          s.now().UTC(),
	}
	if len(payload.Weather) > 0 {
		report.Condition = strings.ToLower(payload.Weather[0].Main)
		report.Description = payload.Weather[0].Description
	}
	return report, nil
}
