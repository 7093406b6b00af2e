package pipeline

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/naman7474/vak-social-media/internal/models"
)

func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint    { return &u }

func TestResolveSareeSourcesUploadedPhotosWin(t *testing.T) {
	post := &models.Post{
		ProductID:      uintPtr(1),
		InputPhotoURLs: datatypes.JSON(`["https://cdn/a.jpg","https://cdn/b.jpg"]`),
	}
	product := &models.Product{
		ID:     1,
		Photos: []models.ProductPhoto{{ID: 1, PhotoURL: "https://cdn/catalog.jpg"}},
	}

	got := ResolveSareeSources(post, product)
	if len(got) != 2 || got[0] != "https://cdn/a.jpg" || got[1] != "https://cdn/b.jpg" {
		t.Errorf("ResolveSareeSources() = %v, want uploaded photos in order", got)
	}
}

func TestResolveSareeSourcesCatalogFallbackPrimaryFirst(t *testing.T) {
	post := &models.Post{ProductID: uintPtr(7)}
	product := &models.Product{
		ID: 7,
		Photos: []models.ProductPhoto{
			{ID: 3, PhotoURL: "https://cdn/3.jpg"},
			{ID: 5, PhotoURL: "https://cdn/5.jpg", IsPrimary: true},
			{ID: 1, PhotoURL: "https://cdn/1.jpg"},
		},
	}

	got := ResolveSareeSources(post, product)
	want := []string{"https://cdn/5.jpg", "https://cdn/1.jpg", "https://cdn/3.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %d urls, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveSareeSourcesEmpty(t *testing.T) {
	if got := ResolveSareeSources(&models.Post{}, nil); got != nil {
		t.Errorf("ResolveSareeSources() = %v, want nil", got)
	}
}

func TestBuildProductInfo(t *testing.T) {
	days := 12
	price := 14500.0
	product := &models.Product{
		ProductCode: "VAK-021",
		ProductName: strPtr("Midnight Peacock"),
		Fabric:      strPtr("silk"),
		DaysToMake:  &days,
		Price:       &price,
	}

	info := BuildProductInfo(product)
	if info["product_code"] != "VAK-021" {
		t.Errorf("product_code = %q", info["product_code"])
	}
	if info["days_to_make"] != "12" {
		t.Errorf("days_to_make = %q, want 12", info["days_to_make"])
	}
	if info["price"] != "14500.00" {
		t.Errorf("price = %q, want 14500.00", info["price"])
	}
	if _, ok := info["motif"]; ok {
		t.Error("unset fields should be omitted")
	}

	if got := BuildProductInfo(nil); len(got) != 0 {
		t.Errorf("nil product should yield empty info, got %v", got)
	}
}
