package handler

import (
	"bytes"
	"encoding/base64"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/closet/internal/db"
	"github.com/gin-gonic/gin"
)

func TestUploadGarmentJSON(t *testing.T) {
	env := setupTestAPI(t, nil)
	owner, token := env.signUp(t, "upload@example.com")

	rr := env.do(t, http.MethodPost, "/api/upload", map[string]any{
		"image":       "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 64, 48)),
		"name":        "Rain jacket",
		"category":    "outerwear",
		"temperature": "14",
	}, withToken(token))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	garment, _ := body["garment"].(map[string]any)
	if garment["temperature"] != float64(14) || garment["categoryLabel"] != "ジャケット/アウター" {
		t.Fatalf("unexpected garment view %v", garment)
	}
	if env.images.Len() != 2 {
		t.Fatalf("expected image and thumbnail, got %d objects", env.images.Len())
	}

	var stored db.Garment
	if err := env.db.Where("user_id = ?", owner).First(&stored).Error; err != nil {
		t.Fatalf("garment not stored: %v", err)
	}
}

func TestUploadGarmentMultipart(t *testing.T) {
	env := setupTestAPI(t, nil)
	_, token := env.signUp(t, "multipart@example.com")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("name", "Denim")
	_ = writer.WriteField("category", "bottoms")
	_ = writer.WriteField("temperature", "19.6")
	part, err := writer.CreateFormFile("image", "denim.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(testPNG(t, 20, 20))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload?lang=en", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	garment, _ := decodeBody(t, rr)["garment"].(map[string]any)
	if garment["category"] != "pants" || garment["temperature"] != float64(20) || garment["categoryLabel"] != "Pants" {
		t.Fatalf("unexpected garment view %v", garment)
	}
}

func TestUploadGarmentValidation(t *testing.T) {
	env := setupTestAPI(t, nil)
	_, token := env.signUp(t, "invalid@example.com")
	image := base64.StdEncoding.EncodeToString(testPNG(t, 8, 8))

	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "missing temperature", body: map[string]any{"image": image, "name": "a", "category": "tops"}},
		{name: "missing image", body: map[string]any{"name": "a", "category": "tops", "temperature": 20}},
		{name: "not an image", body: map[string]any{"image": base64.StdEncoding.EncodeToString([]byte("text")), "name": "a", "category": "tops", "temperature": 20}},
		{name: "bad temperature", body: map[string]any{"image": image, "name": "a", "category": "tops", "temperature": "warm"}},
		{name: "empty name", body: map[string]any{"image": image, "name": " ", "category": "tops", "temperature": 20}},
	}
	for _, tc := range cases {
		rr := env.do(t, http.MethodPost, "/api/upload", tc.body, withToken(token))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, rr.Code, rr.Body.String())
		}
	}
	if env.images.Len() != 0 {
		t.Fatalf("rejected uploads must not store images, found %d", env.images.Len())
	}
}

func TestGarmentCRUD(t *testing.T) {
	env := setupTestAPI(t, nil)
	owner, token := env.signUp(t, "crud@example.com")
	_, otherToken := env.signUp(t, "other@example.com")

	coat := seedGarment(t, env.db, owner, "outerwear", 8)
	tee := seedGarment(t, env.db, owner, "tops", 25)
	path := "/api/images/" + strconv.Itoa(int(coat.ID))

	rr := env.do(t, http.MethodGet, "/api/images?sort=temperature", nil, withToken(token))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items, _ := decodeBody(t, rr)["items"].([]any)
	if len(items) != 2 || items[0].(map[string]any)["id"] != float64(coat.ID) {
		t.Fatalf("unexpected listing %v", items)
	}

	rr = env.do(t, http.MethodGet, "/api/images?sort=colour", nil, withToken(token))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, path, nil, withToken(otherToken))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign owner should get 404, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/update/"+strconv.Itoa(int(tee.ID)), map[string]any{"temperature": 27}, withToken(token))
	if rr.Code != http.StatusOK || decodeBody(t, rr)["temperature"] != float64(27) {
		t.Fatalf("unexpected update response %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPut, "/api/update/abc", map[string]any{"temperature": 27}, withToken(token))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/api/delete/"+strconv.Itoa(int(coat.ID)), nil, withToken(token))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, path, nil, withToken(token))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestCandidatesTargetResolution(t *testing.T) {
	env := setupTestAPI(t, nil)
	owner, token := env.signUp(t, "candidates@example.com")

	seedGarment(t, env.db, owner, "tops", 21)
	seedGarment(t, env.db, owner, "outerwear", 18)
	seedGarment(t, env.db, owner, "pants", 5)

	rr := env.do(t, http.MethodGet, "/api/candidates", nil, withToken(token))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("no target must be rejected, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/candidates?temperature=20&tolerance=3", nil, withToken(token))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	groups, _ := body["groups"].([]any)
	if body["source"] != "query" || len(groups) != 2 || groups[0].(map[string]any)["category"] != "outerwear" {
		t.Fatalf("unexpected candidates %v", body)
	}

	rr = env.do(t, http.MethodGet, "/api/candidates?temperature=20&tolerance="+strconv.Itoa(math.MaxInt), nil, withToken(token))
	if rr.Code != http.StatusOK || decodeBody(t, rr)["count"] != float64(3) {
		t.Fatalf("max tolerance should keep every garment, got %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/candidates?temperature=20&tolerance=-1", nil, withToken(token))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative tolerance must be rejected, got %d", rr.Code)
	}

	// The weather lookup stores the rounded temperature (21) in the session cookie.
	rr = env.do(t, http.MethodGet, "/api/weather?lat=35.68&lon=139.76", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected weather 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["temperature"] != float64(21) || body["label"] != "晴れ" {
		t.Fatalf("unexpected weather body %v", body)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	rr = env.do(t, http.MethodGet, "/api/candidates?tolerance=0", nil, withToken(token), withCookies(cookies))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body = decodeBody(t, rr)
	if body["source"] != "session" || body["target"] != float64(21) || body["count"] != float64(1) {
		t.Fatalf("unexpected session candidates %v", body)
	}

	rr = env.do(t, http.MethodGet, "/api/candidates?lat=35.68&lon=139.76", nil, withToken(token))
	if rr.Code != http.StatusOK || decodeBody(t, rr)["source"] != "weather" {
		t.Fatalf("expected weather-sourced target, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestCandidatesWeatherFailureWithoutSession(t *testing.T) {
	env := setupTestAPI(t, nil)
	_, token := env.signUp(t, "weatherless@example.com")
	env.weather.status = http.StatusUnauthorized
	env.weather.body = `{"message":"Invalid API key"}`

	rr := env.do(t, http.MethodGet, "/api/candidates?lat=1&lon=1", nil, withToken(token))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCategories(t *testing.T) {
	env := setupTestAPI(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	c.Request.Header.Set("Accept-Language", "en-US,en;q=0.9")

	env.api.Categories(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	categories, _ := body["categories"].([]any)
	if len(categories) != 6 || body["defaultWeight"] != 0.5 {
		t.Fatalf("unexpected categories %v", body)
	}
	first := categories[0].(map[string]any)
	if first["category"] != "outerwear" || first["label"] != "Jackets & outerwear" || first["weight"] != 1.0 {
		t.Fatalf("unexpected first category %v", first)
	}
}
