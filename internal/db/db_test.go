package db

import (
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/logger"
)

func TestInitCreatesParentDirAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "closet.db")

	if err := Init("sqlite", path); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
		DB = nil
	})

	for _, model := range []any{&User{}, &Garment{}, &OutfitSession{}, &OutfitItem{}, &Feedback{}} {
		if !DB.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
	if !DB.Migrator().HasIndex(&OutfitSession{}, "idx_outfit_owner_date") {
		t.Fatal("expected unique owner/date index on outfit sessions")
	}
	if !DB.Migrator().HasIndex(&Garment{}, "idx_garments_owner_temperature") {
		t.Fatal("expected owner/temperature index on garments")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "whatever", logger.Default.LogMode(logger.Silent)); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFeedbackAdjustmentsRoundTrip(t *testing.T) {
	gdb, err := Open("sqlite", "file:feedback-json?mode=memory&cache=shared", logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	record := Feedback{
		UserID:       "owner-1",
		FeedbackDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Rating:       1,
		Adjustments: datatypes.JSONSlice[FeedbackAdjustment]{
			{GarmentID: 3, Status: "updated", Before: 15, After: 16, Delta: 1},
			{GarmentID: 4, Status: "skipped"},
		},
	}
	if err := gdb.Create(&record).Error; err != nil {
		t.Fatalf("failed to create feedback: %v", err)
	}

	var loaded Feedback
	if err := gdb.First(&loaded, record.ID).Error; err != nil {
		t.Fatalf("failed to load feedback: %v", err)
	}
	if len(loaded.Adjustments) != 2 || loaded.Adjustments[0].After != 16 || loaded.Adjustments[1].Status != "skipped" {
		t.Fatalf("unexpected adjustments %+v", loaded.Adjustments)
	}
}

func TestOutfitSessionGarmentIDs(t *testing.T) {
	session := OutfitSession{Items: []OutfitItem{{GarmentID: 9, Position: 0}, {GarmentID: 2, Position: 1}}}
	ids := session.GarmentIDs()
	if len(ids) != 2 || ids[0] != 9 || ids[1] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
}
