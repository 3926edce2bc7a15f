package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return value, nil
}

// parseTemperature accepts "18", "18.4" or "-3" and rounds to whole degrees.
func parseTemperature(raw string) (int, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.New("invalid temperature")
	}
	return roundTemperature(value)
}

func roundTemperature(value float64) (int, error) {
	if math.IsNaN(value) || value >= math.MaxInt64 || value <= math.MinInt64 {
		return 0, errors.New("invalid temperature")
	}
	return int(math.Round(value)), nil
}

// flexInt decodes a JSON number or a numeric string; mobile form fields arrive as either.
type flexInt struct {
	Value int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		value, err := roundTemperature(number)
		if err != nil {
			return err
		}
		f.Value = value
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return errors.New("expected a number")
	}
	value, err := parseTemperature(text)
	if err != nil {
		return err
	}
	f.Value = value
	return nil
}

func (f *flexInt) ptr() *int {
	if f == nil {
		return nil
	}
	v := f.Value
	return &v
}

// rating holds a feedback score sent as a JSON integer or an integer string.
// Fractions and anything else decode without error but leave valid false, so
// the handler can answer with the rating error rather than a payload error.
type rating struct {
	Value int
	valid bool
}

func (r *rating) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		raw = strings.TrimSpace(text)
	}
	value, err := strconv.Atoi(raw)
	r.Value, r.valid = value, err == nil
	return nil
}
