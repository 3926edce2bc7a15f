package handler

import (
	"net/http"
	"time"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
	"github.com/closet/internal/service"
	"github.com/gin-gonic/gin"
)

type feedbackPayload struct {
	Date     string   `json:"date"`
	Feedback *rating `json:"feedback"`
}

type adjustmentView struct {
	ID     uint `json:"id"`
	Before int  `json:"before"`
	After  int  `json:"after"`
	Delta  int  `json:"delta"`
}

type failureView struct {
	ID    uint   `json:"id"`
	Error string `json:"error"`
}

func adjustmentResultToJSON(result *service.AdjustmentResult) gin.H {
	updated := make([]adjustmentView, 0, len(result.Updated))
	for _, adj := range result.Updated {
		updated = append(updated, adjustmentView{ID: adj.GarmentID, Before: adj.Before, After: adj.After, Delta: adj.Delta})
	}
	failed := make([]failureView, 0, len(result.Failed))
	for _, failure := range result.Failed {
		failed = append(failed, failureView{ID: failure.GarmentID, Error: failure.Err.Error()})
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []uint{}
	}
	return gin.H{
		"date":    result.Date.UTC().Format(comfort.DayLayout),
		"rating":  result.Rating,
		"factor":  result.Factor,
		"updated": updated,
		"skipped": skipped,
		"failed":  failed,
		"partial": result.Partial(),
	}
}

// SubmitFeedback applies a 1 (too cold) .. 5 (too hot) rating to the day's outfit.
// Some garments failing answers 200 with "partial": true; all failing answers 503
// and still lists what was attempted.
func (a *API) SubmitFeedback(c *gin.Context) {
	var payload feedbackPayload
	if !bindJSON(c, &payload, "invalid feedback payload") {
		return
	}
	if payload.Feedback == nil || !payload.Feedback.valid {
		respondError(c, http.StatusBadRequest, service.ErrInvalidRating.Error())
		return
	}

	day, err := a.parseDay(payload.Date)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	result, err := a.feedback.Apply(c.Request.Context(), currentOwner(c), day, payload.Feedback.Value)
	if err != nil {
		if result != nil {
			body := adjustmentResultToJSON(result)
			body["error"] = "storage temporarily unavailable, please retry"
			a.log.Error("feedback not applied", "owner", currentOwner(c), "error", err)
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		a.handleServiceError(c, err)
		return
	}

	body := adjustmentResultToJSON(result)
	body["message"] = "feedback applied"
	c.JSON(http.StatusOK, body)
}

// FeedbackHistory lists every rating submitted for a day with its per-garment outcome.
func (a *API) FeedbackHistory(c *gin.Context) {
	day, err := a.parseDay(c.Param("date"))
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	entries, err := a.feedback.History(c.Request.Context(), currentOwner(c), day)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		adjustments := []db.FeedbackAdjustment(entry.Adjustments)
		if adjustments == nil {
			adjustments = []db.FeedbackAdjustment{}
		}
		items = append(items, gin.H{
			"rating":      entry.Rating,
			"adjustments": adjustments,
			"createdAt":   entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"date":  day.Format(comfort.DayLayout),
		"items": items,
		"count": len(items),
	})
}
