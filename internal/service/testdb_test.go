package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/closet/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-test-%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := db.Open("sqlite", dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// seedGarment inserts a garment row directly, bypassing image handling.
func seedGarment(t *testing.T, gdb *gorm.DB, owner, category string, temperature int) db.Garment {
	t.Helper()
	garment := db.Garment{
		UserID:             owner,
		Name:               category + " item",
		Category:           category,
		ComfortTemperature: temperature,
		ImageRef:           "garments/" + owner + "/seed.png",
	}
	if err := gdb.Create(&garment).Error; err != nil {
		t.Fatalf("failed to seed garment: %v", err)
	}
	return garment
}

func comfortOf(t *testing.T, gdb *gorm.DB, id uint) int {
	t.Helper()
	var garment db.Garment
	if err := gdb.WithContext(context.Background()).First(&garment, id).Error; err != nil {
		t.Fatalf("failed to load garment %d: %v", id, err)
	}
	return garment.ComfortTemperature
}
