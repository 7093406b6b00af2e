package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/naman7474/vak-social-media/internal/models"
)

// ResolveSareeSources returns the ordered product image URLs for a post:
// explicit uploaded photos first, the linked product's photos
// (primary-first, then by id) as fallback. Empty means no usable photo and
// the style stage must fail.
func ResolveSareeSources(post *models.Post, product *models.Product) []string {
	if len(post.InputPhotoURLs) > 0 {
		var urls []string
		if err := json.Unmarshal(post.InputPhotoURLs, &urls); err == nil && len(urls) > 0 {
			return urls
		}
	}

	if post.ProductID != nil && product != nil && len(product.Photos) > 0 {
		photos := make([]models.ProductPhoto, len(product.Photos))
		copy(photos, product.Photos)
		sort.SliceStable(photos, func(i, j int) bool {
			if photos[i].IsPrimary != photos[j].IsPrimary {
				return photos[i].IsPrimary
			}
			return photos[i].ID < photos[j].ID
		})
		urls := make([]string, len(photos))
		for i, p := range photos {
			urls[i] = p.PhotoURL
		}
		return urls
	}
	return nil
}

// BuildProductInfo flattens product metadata for the caption writer.
func BuildProductInfo(product *models.Product) ProductInfo {
	if product == nil {
		return ProductInfo{}
	}
	info := ProductInfo{"product_code": product.ProductCode}
	setIf := func(key string, v *string) {
		if v != nil && *v != "" {
			info[key] = *v
		}
	}
	setIf("product_name", product.ProductName)
	setIf("product_type", product.ProductType)
	setIf("fabric", product.Fabric)
	setIf("colors", product.Colors)
	setIf("motif", product.Motif)
	setIf("artisan_name", product.ArtisanName)
	setIf("technique", product.Technique)
	setIf("shopify_url", product.ShopifyURL)
	if product.DaysToMake != nil {
		info["days_to_make"] = strconv.Itoa(*product.DaysToMake)
	}
	if product.Price != nil {
		info["price"] = strconv.FormatFloat(*product.Price, 'f', 2, 64)
	}
	return info
}

// fetchBytes downloads a URL's content with a bounded timeout.
func fetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 40*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
