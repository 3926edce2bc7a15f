package db

import "time"

// OutfitSession records what a user chose to wear on a calendar day.
// (UserID, OutfitDate) is unique; OutfitDate is midnight UTC of the owner's local day.
type OutfitSession struct {
	ID         uint         `gorm:"primaryKey"`
	UserID     string       `gorm:"size:36;not null;uniqueIndex:idx_outfit_owner_date,priority:1"`
	OutfitDate time.Time    `gorm:"not null;uniqueIndex:idx_outfit_owner_date,priority:2"`
	Items      []OutfitItem `gorm:"foreignKey:OutfitID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OutfitItem links a session to a garment. Position keeps selection order.
// GarmentID carries no foreign key: deleted garments are skipped when feedback arrives.
type OutfitItem struct {
	ID        uint `gorm:"primaryKey"`
	OutfitID  uint `gorm:"not null;index"`
	GarmentID uint `gorm:"not null"`
	Position  int  `gorm:"not null"`
}

// GarmentIDs returns the garment ids ordered by selection position.
func (s OutfitSession) GarmentIDs() []uint {
	ids := make([]uint, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.GarmentID
	}
	return ids
}
