package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
	"github.com/gin-gonic/gin"
)

type outfitPayload struct {
	Date       string `json:"date"`
	ClothesIDs []uint `json:"clothesIds"`
}

type outfitView struct {
	Date       string `json:"date"`
	ClothesIDs []uint `json:"clothesIds"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func outfitToView(session db.OutfitSession) outfitView {
	return outfitView{
		Date:       session.OutfitDate.UTC().Format(comfort.DayLayout),
		ClothesIDs: session.GarmentIDs(),
		CreatedAt:  session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// parseDay reads a calendar day in the owner's timezone. An empty value means today.
func (a *API) parseDay(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return comfort.Day(time.Now(), a.location), nil
	}
	return comfort.ParseDay(raw, a.location)
}

// RegisterOutfit records what the caller wears on a day, replacing any earlier choice.
func (a *API) RegisterOutfit(c *gin.Context) {
	var payload outfitPayload
	if !bindJSON(c, &payload, "invalid outfit payload") {
		return
	}

	day, err := a.parseDay(payload.Date)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	session, err := a.outfits.Register(c.Request.Context(), currentOwner(c), day, payload.ClothesIDs)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "outfit registered",
		"outfit":  outfitToView(*session),
	})
}

func (a *API) GetOutfit(c *gin.Context) {
	day, err := a.parseDay(c.Param("date"))
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	session, err := a.outfits.Get(c.Request.Context(), currentOwner(c), day)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outfitToView(*session))
}

// ListOutfits returns recent outfits, newest first. ?limit= caps the count.
func (a *API) ListOutfits(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil || limit < 0 {
		respondError(c, http.StatusBadRequest, "invalid limit")
		return
	}

	sessions, err := a.outfits.ListRecent(c.Request.Context(), currentOwner(c), limit)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	items := make([]outfitView, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, outfitToView(session))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
