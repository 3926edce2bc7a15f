package db

import "gorm.io/gorm"

// User is an account. UserID is the opaque owner id every wardrobe record is scoped to.
type User struct {
	gorm.Model
	UserID      string `gorm:"size:36;uniqueIndex;not null"`
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `gorm:"not null"`
	DisplayName string
}
