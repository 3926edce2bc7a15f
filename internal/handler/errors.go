package handler

import (
	"errors"
	"net/http"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/service"
	"github.com/gin-gonic/gin"
)

// handleServiceError maps service sentinels onto status codes. Validation
// failures are 400, missing records 404, retryable storage trouble 503.
func (a *API) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOwnerRequired),
		errors.Is(err, service.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "メールアドレスまたはパスワードが間違っています")
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, "このメールアドレスは既に登録されています")
	case errors.Is(err, service.ErrFeedbackAlreadyApplied):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGarmentNotFound):
		respondError(c, http.StatusNotFound, "衣類が見つかりません")
	case errors.Is(err, service.ErrOutfitNotFound),
		errors.Is(err, service.ErrNoOutfitForDate),
		errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrImageTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrInvalidReference),
		errors.Is(err, service.ErrEmptySelection),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, comfort.ErrInvalidDate),
		errors.Is(err, service.ErrGarmentNameRequired),
		errors.Is(err, service.ErrCategoryRequired),
		errors.Is(err, service.ErrTemperatureRequired),
		errors.Is(err, service.ErrInvalidSort),
		errors.Is(err, service.ErrImageRequired),
		errors.Is(err, service.ErrImageInvalid),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidCoordinates):
		respondError(c, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, service.ErrWeatherAPIKeyMissing):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrWeatherUpstream):
		a.log.Warn("weather upstream failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrPersistence):
		a.log.Error("storage failure", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusServiceUnavailable, "storage temporarily unavailable, please retry")
	default:
		a.log.Error("unexpected handler error", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage returns the innermost wrapped message, which is the sentinel's text
// for validation errors.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
