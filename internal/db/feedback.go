package db

import (
	"time"

	"gorm.io/datatypes"
)

// Feedback is the append-only log of post-wear ratings and what each one changed.
type Feedback struct {
	ID           uint                                   `gorm:"primaryKey"`
	UserID       string                                 `gorm:"size:36;not null;index:idx_feedback_owner_date,priority:1"`
	FeedbackDate time.Time                              `gorm:"not null;index:idx_feedback_owner_date,priority:2"`
	Rating       int                                    `gorm:"not null"`
	Adjustments  datatypes.JSONSlice[FeedbackAdjustment]
	CreatedAt    time.Time
}

// FeedbackAdjustment is one garment's outcome within a feedback submission.
type FeedbackAdjustment struct {
	GarmentID uint   `json:"garment_id"`
	Status    string `json:"status"` // updated, skipped, failed
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Delta     int    `json:"delta"`
	Error     string `json:"error,omitempty"`
}
