package db

import "time"

// Garment is one photographed clothing item.
// ComfortTemperature is the °C the item is comfortable at; feedback nudges it over time.
// The two composite indexes back category listing and the temperature range scan.
type Garment struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             string    `gorm:"size:36;not null;index:idx_garments_owner_category,priority:1;index:idx_garments_owner_temperature,priority:1"`
	Name               string    `gorm:"not null"`
	Category           string    `gorm:"size:32;not null;index:idx_garments_owner_category,priority:2"`
	ComfortTemperature int       `gorm:"not null;index:idx_garments_owner_temperature,priority:2"`
	ImageRef           string    `gorm:"not null"`
	ThumbRef           string
	ImageWidth         int
	ImageHeight        int
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time
}
