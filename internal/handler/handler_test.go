package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/closet/internal/db"
	"github.com/closet/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var handlerDBSeq atomic.Int64

type testEnv struct {
	api     *API
	db      *gorm.DB
	images  *service.MemoryImageStore
	weather *fakeDoer
	engine  *gin.Engine
}

type fakeDoer struct {
	status int
	body   string
	calls  int
}

func (f *fakeDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return &http.Response{
		StatusCode: f.status,
		Status:     http.StatusText(f.status),
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func setupTestAPI(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-test-%d?mode=memory&cache=shared", handlerDBSeq.Add(1))
	gdb, err := db.Open("sqlite", dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	doer := &fakeDoer{status: http.StatusOK, body: `{"name":"Tokyo","main":{"temp":21.4,"humidity":50},"weather":[{"main":"Clear"}]}`}
	weather := service.NewWeatherService("test-key", "https://weather.test", 0, nil)
	weather.SetHTTPClient(doer)

	images := service.NewMemoryImageStore()
	deps := Dependencies{
		Images:           images,
		Weather:          weather,
		JWTSecret:        "handler-secret",
		DefaultTolerance: 5,
	}
	if mutate != nil {
		mutate(&deps)
	}

	api := NewAPI(gdb, deps)
	api.users.SetHashCost(bcrypt.MinCost)

	return &testEnv{api: api, db: gdb, images: images, weather: doer, engine: newTestEngine(api)}
}

// newTestEngine mirrors the production route table without the router package.
func newTestEngine(api *API) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("closet_session", cookie.NewStore([]byte("test-session"))))

	r.POST("/api/register", api.Register)
	r.POST("/api/check-email", api.CheckEmail)
	r.POST("/api/login", api.Login)
	r.GET("/api/weather", api.Weather)
	r.GET("/api/categories", api.Categories)

	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	auth.GET("/me", api.Me)
	auth.POST("/upload", api.UploadGarment)
	auth.GET("/images", api.ListGarments)
	auth.GET("/images/:id", api.GetGarment)
	auth.PUT("/update/:id", api.UpdateGarment)
	auth.DELETE("/delete/:id", api.DeleteGarment)
	auth.GET("/candidates", api.Candidates)
	auth.POST("/register-outfit", api.RegisterOutfit)
	auth.GET("/outfits", api.ListOutfits)
	auth.GET("/outfits/:date", api.GetOutfit)
	auth.POST("/submit-feedback", api.SubmitFeedback)
	auth.GET("/feedback/:date", api.FeedbackHistory)
	return r
}

// signUp registers an account and returns its owner id and bearer token.
func (e *testEnv) signUp(t *testing.T, email string) (string, string) {
	t.Helper()
	user, err := e.api.users.Register(context.Background(), email, "password123", "tester")
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	token, _, err := e.api.users.IssueToken(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return user.UserID, token
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cookies []*http.Cookie) requestOption {
	return func(req *http.Request) {
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func seedGarment(t *testing.T, gdb *gorm.DB, owner, category string, temperature int) db.Garment {
	t.Helper()
	garment := db.Garment{UserID: owner, Name: category, Category: category, ComfortTemperature: temperature, ImageRef: "garments/" + owner + "/x.png"}
	if err := gdb.Create(&garment).Error; err != nil {
		t.Fatalf("failed to seed garment: %v", err)
	}
	return garment
}
