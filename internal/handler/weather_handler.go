package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/closet/internal/locale"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionTemperatureKey = "current_temperature"

// Weather proxies the current weather and remembers the rounded temperature in the session.
func (a *API) Weather(c *gin.Context) {
	lat, lon, ok := parseCoordinates(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "lat and lon are required")
		return
	}

	report, err := a.weather.Current(c.Request.Context(), lat, lon)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	a.rememberTemperature(c, report.RoundedTemperature)

	language := requestLanguage(c)
	c.JSON(http.StatusOK, gin.H{
		"weather":          report,
		"label":            locale.WeatherLabel(language, report.Condition),
		"temperature":      report.RoundedTemperature,
		"temperatureExact": report.Temperature,
	})
}

func parseCoordinates(c *gin.Context) (float64, float64, bool) {
	rawLat := strings.TrimSpace(c.Query("lat"))
	rawLon := strings.TrimSpace(c.Query("lon"))
	if rawLat == "" || rawLon == "" {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// resolveTarget finds the temperature to filter by when none was given
// explicitly: a live weather lookup, then the last temperature stored in the
// session. An empty source means there is no target and filtering must not run.
func (a *API) resolveTarget(c *gin.Context) (int, string, error) {
	if lat, lon, ok := parseCoordinates(c); ok {
		report, err := a.weather.Current(c.Request.Context(), lat, lon)
		if err == nil {
			a.rememberTemperature(c, report.RoundedTemperature)
			return report.RoundedTemperature, "weather", nil
		}
		if value, ok := a.sessionTemperature(c); ok {
			a.log.Warn("weather lookup failed, using session temperature", "error", err)
			return value, "session", nil
		}
		return 0, "", err
	}

	if value, ok := a.sessionTemperature(c); ok {
		return value, "session", nil
	}
	return 0, "", nil
}

func (a *API) rememberTemperature(c *gin.Context, value int) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return
	}
	session := sessions.Default(c)
	session.Set(sessionTemperatureKey, value)
	if err := session.Save(); err != nil {
		a.log.Warn("save session failed", "error", err)
	}
}

func (a *API) sessionTemperature(c *gin.Context) (int, bool) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return 0, false
	}
	value, ok := sessions.Default(c).Get(sessionTemperatureKey).(int)
	return value, ok
}
