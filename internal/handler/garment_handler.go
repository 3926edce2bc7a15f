package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
	"github.com/closet/internal/locale"
	"github.com/closet/internal/service"
	"github.com/gin-gonic/gin"
)

type garmentPayload struct {
	Image       string   `json:"image"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Temperature *flexInt `json:"temperature"`
}

type garmentUpdatePayload struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Temperature *flexInt `json:"temperature"`
}

type garmentView struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	CategoryLabel string `json:"categoryLabel"`
	Temperature   int    `json:"temperature"`
	ImageURL      string `json:"imageUrl"`
	ThumbnailURL  string `json:"thumbnailUrl"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type garmentGroupView struct {
	Category string        `json:"category"`
	Label    string        `json:"label"`
	Items    []garmentView `json:"items"`
}

func requestLanguage(c *gin.Context) string {
	return locale.Resolve(c.Query("lang"), c.GetHeader("Accept-Language"))
}

func (a *API) garmentToView(ctx context.Context, garment db.Garment, language string) garmentView {
	return garmentView{
		ID:            garment.ID,
		Name:          garment.Name,
		Category:      garment.Category,
		CategoryLabel: locale.CategoryLabel(language, comfort.Category(garment.Category)),
		Temperature:   garment.ComfortTemperature,
		ImageURL:      a.garments.ImageURL(ctx, garment.ImageRef),
		ThumbnailURL:  a.garments.ImageURL(ctx, garment.ThumbRef),
		Width:         garment.ImageWidth,
		Height:        garment.ImageHeight,
		CreatedAt:     garment.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     garment.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// UploadGarment accepts either a JSON body with a base64 "image" field or a
// multipart form with an "image" file.
func (a *API) UploadGarment(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUpload)

	var input service.GarmentInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		parsed, ok := a.readMultipartGarment(c)
		if !ok {
			return
		}
		input = parsed
	} else {
		var payload garmentPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, http.StatusRequestEntityTooLarge, service.ErrImageTooLarge.Error())
				return
			}
			respondError(c, http.StatusBadRequest, "invalid garment payload")
			return
		}
		image, err := service.DecodeBase64Image(payload.Image)
		if err != nil {
			a.handleServiceError(c, err)
			return
		}
		input = service.GarmentInput{
			Name:               payload.Name,
			Category:           payload.Category,
			ComfortTemperature: payload.Temperature.ptr(),
			Image:              image,
		}
	}

	garment, err := a.garments.Create(c.Request.Context(), currentOwner(c), input)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Image uploaded successfully.",
		"id":      garment.ID,
		"garment": a.garmentToView(c.Request.Context(), *garment, requestLanguage(c)),
	})
}

func (a *API) readMultipartGarment(c *gin.Context) (service.GarmentInput, bool) {
	input := service.GarmentInput{
		Name:     c.PostForm("name"),
		Category: c.PostForm("category"),
	}
	if raw := strings.TrimSpace(c.PostForm("temperature")); raw != "" {
		value, err := parseTemperature(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return input, false
		}
		input.ComfortTemperature = &value
	}

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, service.ErrImageTooLarge.Error())
			return input, false
		}
		a.handleServiceError(c, service.ErrImageRequired)
		return input, false
	}
	opened, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image upload")
		return input, false
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image upload")
		return input, false
	}
	input.Image = data
	return input, true
}

// ListGarments returns the caller's closet. ?category= filters, ?sort=category|temperature|newest orders.
func (a *API) ListGarments(c *gin.Context) {
	garments, err := a.garments.ListByOwner(c.Request.Context(), currentOwner(c), service.GarmentFilter{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	language := requestLanguage(c)
	items := make([]garmentView, 0, len(garments))
	for _, garment := range garments {
		items = append(items, a.garmentToView(c.Request.Context(), garment, language))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (a *API) GetGarment(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	garment, err := a.garments.Get(c.Request.Context(), currentOwner(c), id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.garmentToView(c.Request.Context(), *garment, requestLanguage(c)))
}

func (a *API) UpdateGarment(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload garmentUpdatePayload
	if !bindJSON(c, &payload, "invalid garment payload") {
		return
	}

	garment, err := a.garments.Update(c.Request.Context(), currentOwner(c), id, service.GarmentUpdate{
		Name:               payload.Name,
		Category:           payload.Category,
		ComfortTemperature: payload.Temperature.ptr(),
	})
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.garmentToView(c.Request.Context(), *garment, requestLanguage(c)))
}

func (a *API) DeleteGarment(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.garments.Delete(c.Request.Context(), currentOwner(c), id); err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted", "id": id})
}

// Candidates lists garments comfortable at the target temperature, grouped by category.
func (a *API) Candidates(c *gin.Context) {
	tolerance, err := parseIntQuery(c, "tolerance", a.tolerance)
	if err != nil || tolerance < 0 {
		respondError(c, http.StatusBadRequest, "invalid tolerance")
		return
	}

	var target int
	var source string
	if raw := strings.TrimSpace(c.Query("temperature")); raw != "" {
		target, err = parseTemperature(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		source = "query"
	} else {
		target, source, err = a.resolveTarget(c)
		if err != nil {
			a.handleServiceError(c, err)
			return
		}
	}
	if source == "" {
		respondError(c, http.StatusBadRequest, "temperature unavailable")
		return
	}

	groups, err := a.garments.Candidates(c.Request.Context(), currentOwner(c), target, tolerance)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	language := requestLanguage(c)
	views := make([]garmentGroupView, 0, len(groups))
	count := 0
	for _, group := range groups {
		view := garmentGroupView{
			Category: string(group.Category),
			Label:    locale.CategoryLabel(language, group.Category),
			Items:    make([]garmentView, 0, len(group.Garments)),
		}
		for _, garment := range group.Garments {
			view.Items = append(view.Items, a.garmentToView(c.Request.Context(), garment, language))
		}
		count += len(view.Items)
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"target":    target,
		"tolerance": tolerance,
		"source":    source,
		"groups":    views,
		"count":     count,
	})
}

// Categories exposes the effective category table with localised labels.
func (a *API) Categories(c *gin.Context) {
	language := requestLanguage(c)
	order := a.table.Order()
	items := make([]gin.H, 0, len(order))
	for rank, category := range order {
		items = append(items, gin.H{
			"category": string(category),
			"label":    locale.CategoryLabel(language, category),
			"weight":   a.table.Weight(category),
			"rank":     rank,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"categories":    items,
		"defaultWeight": a.table.DefaultWeight(),
	})
}
