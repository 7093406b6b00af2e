package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:  server.Client(),
		accessToken: "test-token",
		accountID:   "12345",
		appID:       "app-id",
		appSecret:   "app-secret",
		baseURL:     server.URL,
	}
}

func TestPostSingleImage(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/12345/media"):
			r.ParseForm()
			if r.Form.Get("image_url") != "https://cdn.example/photo.jpg" {
				t.Errorf("unexpected image_url: %s", r.Form.Get("image_url"))
			}
			if r.Form.Get("caption") != "Handwoven." {
				t.Errorf("unexpected caption: %s", r.Form.Get("caption"))
			}
			if r.Form.Get("alt_text") != "A saree" {
				t.Errorf("unexpected alt_text: %s", r.Form.Get("alt_text"))
			}
			json.NewEncoder(w).Encode(apiResponse{ID: "container-001"})
		case strings.HasSuffix(r.URL.Path, "/12345/media_publish"):
			r.ParseForm()
			if r.Form.Get("creation_id") != "container-001" {
				t.Errorf("unexpected creation_id: %s", r.Form.Get("creation_id"))
			}
			json.NewEncoder(w).Encode(apiResponse{ID: "media-001"})
		case strings.HasSuffix(r.URL.Path, "/media-001"):
			json.NewEncoder(w).Encode(permalinkResponse{ID: "media-001", Permalink: "https://instagram.com/p/abc"})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	result, err := client.PostSingleImage(context.Background(), "https://cdn.example/photo.jpg", "Handwoven.", "A saree", "post:1:variant:1:deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MediaID != "media-001" {
		t.Errorf("media id = %s, want media-001", result.MediaID)
	}
	if result.Permalink != "https://instagram.com/p/abc" {
		t.Errorf("permalink = %s", result.Permalink)
	}
	if len(paths) != 3 {
		t.Errorf("expected container, publish, permalink calls, got %v", paths)
	}
}

func TestPostCarousel(t *testing.T) {
	childCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/12345/media"):
			r.ParseForm()
			if r.Form.Get("is_carousel_item") == "true" {
				childCalls++
				json.NewEncoder(w).Encode(apiResponse{ID: "child-" + r.Form.Get("image_url")[len(r.Form.Get("image_url"))-1:]})
				return
			}
			if r.Form.Get("media_type") != "CAROUSEL" {
				t.Errorf("expected CAROUSEL container, got media_type=%s", r.Form.Get("media_type"))
			}
			if !strings.Contains(r.Form.Get("children"), ",") {
				t.Errorf("children not joined: %s", r.Form.Get("children"))
			}
			json.NewEncoder(w).Encode(apiResponse{ID: "carousel-001"})
		case strings.HasSuffix(r.URL.Path, "/12345/media_publish"):
			json.NewEncoder(w).Encode(apiResponse{ID: "media-002"})
		default:
			json.NewEncoder(w).Encode(permalinkResponse{Permalink: "https://instagram.com/p/def"})
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	result, err := client.PostCarousel(context.Background(),
		[]string{"https://cdn.example/1", "https://cdn.example/2", "https://cdn.example/3"},
		"Three looks.", "", "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if childCalls != 3 {
		t.Errorf("child containers = %d, want 3", childCalls)
	}
	if result.MediaID != "media-002" {
		t.Errorf("media id = %s", result.MediaID)
	}
}

func TestPostCarouselTooFewItems(t *testing.T) {
	client := &Client{accountID: "12345", accessToken: "tok"}
	_, err := client.PostCarousel(context.Background(), []string{"one"}, "caption", "", "key")
	if err == nil || !strings.Contains(err.Error(), "at least 2") {
		t.Errorf("expected error about minimum items, got: %v", err)
	}
}

func TestPostReelWaitsForProcessing(t *testing.T) {
	published := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/12345/media"):
			r.ParseForm()
			if r.Form.Get("media_type") != "REELS" {
				t.Errorf("media_type = %s, want REELS", r.Form.Get("media_type"))
			}
			if r.Form.Get("thumb_offset") != "3000" {
				t.Errorf("thumb_offset = %s, want 3000", r.Form.Get("thumb_offset"))
			}
			json.NewEncoder(w).Encode(apiResponse{ID: "reel-container"})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/reel-container"):
			json.NewEncoder(w).Encode(containerStatusResponse{ID: "reel-container", StatusCode: "FINISHED"})
		case strings.HasSuffix(r.URL.Path, "/12345/media_publish"):
			published = true
			json.NewEncoder(w).Encode(apiResponse{ID: "media-003"})
		default:
			json.NewEncoder(w).Encode(permalinkResponse{Permalink: "https://instagram.com/reel/ghi"})
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	result, err := client.PostReel(context.Background(), "https://cdn.example/reel.mp4", "Watch it drape.", 3000, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !published {
		t.Error("container was never published")
	}
	if result.MediaID != "media-003" {
		t.Errorf("media id = %s", result.MediaID)
	}
}

func TestPostReelProcessingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(apiResponse{ID: "reel-container"})
			return
		}
		json.NewEncoder(w).Encode(containerStatusResponse{ID: "reel-container", StatusCode: "ERROR"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.PostReel(context.Background(), "https://cdn.example/reel.mp4", "caption", 0, "key")
	if err == nil || !strings.Contains(err.Error(), "processing failed") {
		t.Errorf("expected processing failure, got: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			Error: &apiErr{
				Message: "Invalid OAuth access token",
				Type:    "OAuthException",
				Code:    190,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.PostSingleImage(context.Background(), "https://cdn.example/photo.jpg", "caption", "", "key")
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	if !strings.Contains(err.Error(), "OAuthException") {
		t.Errorf("expected OAuthException in error, got: %v", err)
	}
}

func TestDryRunSkipsNetwork(t *testing.T) {
	client := &Client{dryRun: true}
	result, err := client.PostSingleImage(context.Background(), "url", "caption", "", "post:7:variant:1:cafe0123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.MediaID, "post:7:variant:1:cafe0123") {
		t.Errorf("dry run media id = %s, want it to carry the idempotency key", result.MediaID)
	}
}

func TestRefreshPageToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/oauth/access_token") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("grant_type") != "fb_exchange_token" {
			t.Errorf("grant_type = %s", q.Get("grant_type"))
		}
		if q.Get("fb_exchange_token") != "test-token" {
			t.Errorf("fb_exchange_token = %s", q.Get("fb_exchange_token"))
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "fresh-token", ExpiresIn: 5184000})
	}))
	defer server.Close()

	client := newTestClient(server)
	expiresIn, err := client.RefreshPageToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != 5184000 {
		t.Errorf("expires_in = %d, want 5184000", expiresIn)
	}
	if client.accessToken != "fresh-token" {
		t.Errorf("token not rotated, still %s", client.accessToken)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is a ..."},
		{"exact", 5, "exact"},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.limit)
		if got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
		}
	}
}
