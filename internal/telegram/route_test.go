package telegram

import "testing"

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/reel/abc123/", "reel"},
		{"https://www.instagram.com/reels/abc123/", "reel"},
		{"https://www.instagram.com/p/abc123/", "image"},
		{"https://www.instagram.com/tv/abc123/", "reel"},
		{"https://pinterest.com/pin/999/", "unknown"},
		{"https://pin.it/short", "unknown"},
		{"https://example.com/whatever", "unknown"},
	}
	for _, tt := range tests {
		if got := DetectMediaType(tt.url); got != tt.want {
			t.Errorf("DetectMediaType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDetectUserOverride(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"make it a reel", "reel"},
		{"I want a video of this", "reel"},
		{"just the photo please", "image"},
		{"no video", "image"},
		// Negation beats the bare "video" keyword.
		{"photo post, no video", "image"},
		{"style this like the reference", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DetectUserOverride(tt.text); got != tt.want {
			t.Errorf("DetectUserOverride(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestResolvePipelineType(t *testing.T) {
	// User override wins over URL detection.
	if got := ResolvePipelineType("https://www.instagram.com/reel/abc/", "just the photo"); got != "image" {
		t.Errorf("override lost to URL detection: got %q", got)
	}
	// URL detection when no override.
	if got := ResolvePipelineType("https://www.instagram.com/reel/abc/", "style this"); got != "reel" {
		t.Errorf("reel URL not detected: got %q", got)
	}
	// Ambiguous defaults to image.
	if got := ResolvePipelineType("https://pin.it/abc", "style this"); got != "image" {
		t.Errorf("ambiguous link did not default to image: got %q", got)
	}
}

func TestConfirmMediaTypeFromFile(t *testing.T) {
	if got := ConfirmMediaTypeFromFile("/tmp/clip.mp4", "https://pin.it/abc"); got != "reel" {
		t.Errorf("mp4 = %q, want reel", got)
	}
	if got := ConfirmMediaTypeFromFile("/tmp/photo.jpg", "https://pin.it/abc"); got != "image" {
		t.Errorf("jpg = %q, want image", got)
	}
	if got := ConfirmMediaTypeFromFile("/tmp/blob.bin", "https://www.instagram.com/reel/x/"); got != "reel" {
		t.Errorf("ambiguous extension did not fall back to URL: got %q", got)
	}
}

func TestAdPresetFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/ad https://pin.it/abc make a 15 second ad", "15_second_reel"},
		{"/ad https://pin.it/abc 14s version please", "15_second_reel"},
		{"/ad https://pin.it/abc 27 seconds", "30_second_reel"},
		{"/ad https://pin.it/abc with VAK-107", "30_second_reel"},
		{"/ad https://pin.it/abc", "30_second_reel"},
		{"an ad around 0:30 long", "30_second_reel"},
	}
	for _, tt := range tests {
		if got := AdPresetFromText(tt.text); got != tt.want {
			t.Errorf("AdPresetFromText(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
