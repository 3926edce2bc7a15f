package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/closet/internal/comfort"
	"github.com/closet/internal/db"
)

func newTestGarmentService(t *testing.T) (*GarmentService, *MemoryImageStore) {
	t.Helper()
	gdb := setupServiceTestDB(t)
	store := NewMemoryImageStore()
	return NewGarmentService(gdb, store, comfort.DefaultTable(), nil), store
}

func TestGarmentServiceCreate(t *testing.T) {
	svc, store := newTestGarmentService(t)
	ctx := context.Background()

	garment, err := svc.Create(ctx, "owner-1", GarmentInput{
		Name:               "  <b>Wool</b> coat ",
		Category:           "Jacket",
		ComfortTemperature: intPtr(8),
		Image:              testPNG(t, 640, 480),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if garment.ID == 0 {
		t.Fatal("expected garment to have ID")
	}
	if garment.Name != "Wool coat" {
		t.Fatalf("expected sanitised name, got %q", garment.Name)
	}
	if garment.Category != string(comfort.Outerwear) {
		t.Fatalf("expected normalised category, got %q", garment.Category)
	}
	if garment.ImageWidth != 640 || garment.ImageHeight != 480 {
		t.Fatalf("unexpected dimensions %dx%d", garment.ImageWidth, garment.ImageHeight)
	}
	if !strings.HasPrefix(garment.ImageRef, "garments/owner-1/") || !strings.HasSuffix(garment.ThumbRef, "-thumb.jpg") {
		t.Fatalf("unexpected image refs %q %q", garment.ImageRef, garment.ThumbRef)
	}
	if !store.Has(garment.ImageRef) || !store.Has(garment.ThumbRef) {
		t.Fatal("expected both images to be stored")
	}
	if url := svc.ImageURL(ctx, garment.ImageRef); url != "memory://"+garment.ImageRef {
		t.Fatalf("unexpected image url %q", url)
	}
}

func TestGarmentServiceCreateValidation(t *testing.T) {
	svc, store := newTestGarmentService(t)
	ctx := context.Background()
	image := testPNG(t, 8, 8)

	cases := []struct {
		name  string
		owner string
		input GarmentInput
		want  error
	}{
		{name: "owner", owner: "", input: GarmentInput{Name: "a", Category: "tops", ComfortTemperature: intPtr(1), Image: image}, want: ErrOwnerRequired},
		{name: "name", owner: "o", input: GarmentInput{Name: "<script></script>", Category: "tops", ComfortTemperature: intPtr(1), Image: image}, want: ErrGarmentNameRequired},
		{name: "category", owner: "o", input: GarmentInput{Name: "a", Category: " ", ComfortTemperature: intPtr(1), Image: image}, want: ErrCategoryRequired},
		{name: "temperature", owner: "o", input: GarmentInput{Name: "a", Category: "tops", Image: image}, want: ErrTemperatureRequired},
		{name: "image", owner: "o", input: GarmentInput{Name: "a", Category: "tops", ComfortTemperature: intPtr(1)}, want: ErrImageRequired},
	}

	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.owner, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("rejected uploads must not store images, found %d", store.Len())
	}
}

func TestGarmentServiceCreateRemovesImagesWhenRecordFails(t *testing.T) {
	svc, store := newTestGarmentService(t)
	if err := svc.db.Migrator().DropTable(&db.Garment{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	_, err := svc.Create(context.Background(), "owner-1", GarmentInput{
		Name: "Tee", Category: "tops", ComfortTemperature: intPtr(24), Image: testPNG(t, 16, 16),
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected written images to be cleaned up, found %d", store.Len())
	}
}

func TestGarmentServiceCreateImageStoreFailure(t *testing.T) {
	svc, store := newTestGarmentService(t)
	store.FailPut = errors.New("disk full")

	_, err := svc.Create(context.Background(), "owner-1", GarmentInput{
		Name: "Tee", Category: "tops", ComfortTemperature: intPtr(24), Image: testPNG(t, 16, 16),
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	var count int64
	svc.db.Model(&db.Garment{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no garment rows, got %d", count)
	}
}

func TestGarmentServiceListByOwner(t *testing.T) {
	svc, _ := newTestGarmentService(t)
	ctx := context.Background()

	skirt := seedGarment(t, svc.db, "owner-1", "skirt", 18)
	coat := seedGarment(t, svc.db, "owner-1", "outerwear", 5)
	legacy := seedGarment(t, svc.db, "owner-1", "scarf", 10)
	tee := seedGarment(t, svc.db, "owner-1", "tops", 26)
	seedGarment(t, svc.db, "owner-2", "tops", 20)

	byCategory, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Sort: GarmentSortCategory})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	assertGarmentOrder(t, byCategory, coat.ID, tee.ID, skirt.ID, legacy.ID)

	byTemperature, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Sort: "temperature"})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	assertGarmentOrder(t, byTemperature, coat.ID, legacy.ID, skirt.ID, tee.ID)

	newest, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	if len(newest) != 4 {
		t.Fatalf("expected owner isolation, got %d garments", len(newest))
	}

	onlyTops, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Category: "top"})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	assertGarmentOrder(t, onlyTops, tee.ID)

	if _, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Sort: "colour"}); !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("expected ErrInvalidSort, got %v", err)
	}
}

func TestGarmentServiceGetUpdateDelete(t *testing.T) {
	svc, store := newTestGarmentService(t)
	ctx := context.Background()

	garment, err := svc.Create(ctx, "owner-1", GarmentInput{
		Name: "Chinos", Category: "bottoms", ComfortTemperature: intPtr(20), Image: testPNG(t, 10, 10),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Get(ctx, "owner-2", garment.ID); !errors.Is(err, ErrGarmentNotFound) {
		t.Fatalf("foreign owner should see NotFound, got %v", err)
	}

	updated, err := svc.Update(ctx, "owner-1", garment.ID, GarmentUpdate{ComfortTemperature: intPtr(22)})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.ComfortTemperature != 22 || updated.Name != "Chinos" || updated.Category != "pants" {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}

	updated, err = svc.Update(ctx, "owner-1", garment.ID, GarmentUpdate{Name: strPtr("Linen chinos"), Category: strPtr("other")})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "Linen chinos" || updated.Category != "other" || updated.ComfortTemperature != 22 {
		t.Fatalf("unexpected garment after update: %+v", updated)
	}

	if _, err := svc.Update(ctx, "owner-1", garment.ID, GarmentUpdate{Name: strPtr("  ")}); !errors.Is(err, ErrGarmentNameRequired) {
		t.Fatalf("expected ErrGarmentNameRequired, got %v", err)
	}
	if _, err := svc.Update(ctx, "owner-2", garment.ID, GarmentUpdate{ComfortTemperature: intPtr(1)}); !errors.Is(err, ErrGarmentNotFound) {
		t.Fatalf("expected ErrGarmentNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, "owner-2", garment.ID); !errors.Is(err, ErrGarmentNotFound) {
		t.Fatalf("expected ErrGarmentNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", garment.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected images to be removed, found %d", store.Len())
	}
	if _, err := svc.Get(ctx, "owner-1", garment.ID); !errors.Is(err, ErrGarmentNotFound) {
		t.Fatalf("expected deleted garment to be gone, got %v", err)
	}
}

func TestGarmentServiceCandidates(t *testing.T) {
	svc, _ := newTestGarmentService(t)
	ctx := context.Background()

	pants := seedGarment(t, svc.db, "owner-1", "pants", 22)
	coat := seedGarment(t, svc.db, "owner-1", "outerwear", 17)
	legacy := seedGarment(t, svc.db, "owner-1", "hat", 20)
	seedGarment(t, svc.db, "owner-1", "tops", 30)
	seedGarment(t, svc.db, "owner-2", "tops", 20)
	tee := seedGarment(t, svc.db, "owner-1", "tops", 25)

	groups, err := svc.Candidates(ctx, "owner-1", 20, 5)
	if err != nil {
		t.Fatalf("Candidates returned error: %v", err)
	}

	want := []struct {
		category comfort.Category
		id       uint
	}{
		{comfort.Outerwear, coat.ID},
		{comfort.Tops, tee.ID},
		{comfort.Pants, pants.ID},
		{"hat", legacy.ID},
	}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, w := range want {
		if groups[i].Category != w.category || len(groups[i].Garments) != 1 || groups[i].Garments[0].ID != w.id {
			t.Fatalf("group %d: expected %s/%d, got %+v", i, w.category, w.id, groups[i])
		}
	}

	empty, err := svc.Candidates(ctx, "owner-1", 60, 2)
	if err != nil {
		t.Fatalf("Candidates returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no groups, got %d", len(empty))
	}
}

func TestGarmentServiceCandidatesHugeTolerance(t *testing.T) {
	svc, _ := newTestGarmentService(t)
	ctx := context.Background()

	tee := seedGarment(t, svc.db, "owner-1", "tops", 20)
	coat := seedGarment(t, svc.db, "owner-1", "outerwear", -10)

	for _, tc := range []struct {
		target, tolerance int
	}{
		{20, 1000},
		{20, math.MaxInt},
		{-20, math.MaxInt},
	} {
		groups, err := svc.Candidates(ctx, "owner-1", tc.target, tc.tolerance)
		if err != nil {
			t.Fatalf("Candidates(%d, %d) returned error: %v", tc.target, tc.tolerance, err)
		}
		if len(groups) != 2 || groups[0].Garments[0].ID != coat.ID || groups[1].Garments[0].ID != tee.ID {
			t.Fatalf("Candidates(%d, %d): expected both garments, got %+v", tc.target, tc.tolerance, groups)
		}
	}
}

func TestTemperatureBoundsSaturate(t *testing.T) {
	cases := []struct {
		target, tolerance, low, high int
	}{
		{20, 5, 15, 25},
		{20, math.MaxInt, math.MinInt, math.MaxInt},
		{-20, math.MaxInt, math.MinInt, math.MaxInt - 20},
		{math.MinInt, 1, math.MinInt, math.MinInt + 1},
	}
	for _, tc := range cases {
		low, high := temperatureBounds(tc.target, tc.tolerance)
		if low != tc.low || high != tc.high {
			t.Fatalf("temperatureBounds(%d, %d) = %d, %d; want %d, %d", tc.target, tc.tolerance, low, high, tc.low, tc.high)
		}
	}
}

func TestGarmentServiceNormalizesLegacyCategories(t *testing.T) {
	svc, _ := newTestGarmentService(t)
	ctx := context.Background()

	other := seedGarment(t, svc.db, "owner-1", "other", 20)
	shorts := seedGarment(t, svc.db, "owner-1", "bottoms", 20)
	dress := seedGarment(t, svc.db, "owner-1", "Dress", 20)

	listed, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Sort: GarmentSortCategory})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	assertGarmentOrder(t, listed, shorts.ID, dress.ID, other.ID)
	if listed[0].Category != string(comfort.Pants) || listed[1].Category != string(comfort.OnePiece) {
		t.Fatalf("expected normalised categories, got %q %q", listed[0].Category, listed[1].Category)
	}

	onlyPants, err := svc.ListByOwner(ctx, "owner-1", GarmentFilter{Category: "pants"})
	if err != nil {
		t.Fatalf("ListByOwner returned error: %v", err)
	}
	assertGarmentOrder(t, onlyPants, shorts.ID)

	groups, err := svc.Candidates(ctx, "owner-1", 20, 0)
	if err != nil {
		t.Fatalf("Candidates returned error: %v", err)
	}
	if len(groups) != 3 || groups[0].Category != comfort.Pants || groups[1].Category != comfort.OnePiece {
		t.Fatalf("expected legacy rows grouped as pants and onepiece, got %+v", groups)
	}

	got, err := svc.Get(ctx, "owner-1", dress.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Category != string(comfort.OnePiece) {
		t.Fatalf("expected onepiece, got %q", got.Category)
	}
}

func assertGarmentOrder(t *testing.T, garments []db.Garment, ids ...uint) {
	t.Helper()
	if len(garments) != len(ids) {
		t.Fatalf("expected %d garments, got %d", len(ids), len(garments))
	}
	for i, id := range ids {
		if garments[i].ID != id {
			t.Fatalf("position %d: expected garment %d, got %d", i, id, garments[i].ID)
		}
	}
}
