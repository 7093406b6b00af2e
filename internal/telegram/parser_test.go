package telegram

import "testing"

func TestParseMessageTextIngestion(t *testing.T) {
	parsed := ParseMessageText("Style like this https://www.instagram.com/p/abc123/ VAK-042")
	if parsed.Command != "" {
		t.Errorf("command = %q, want none", parsed.Command)
	}
	if parsed.SourceURL != "https://www.instagram.com/p/abc123/" {
		t.Errorf("source url = %q", parsed.SourceURL)
	}
	if parsed.ProductCode != "VAK-042" {
		t.Errorf("product code = %q, want VAK-042", parsed.ProductCode)
	}
}

func TestParseMessageTextLowercaseProductCode(t *testing.T) {
	parsed := ParseMessageText("link https://pin.it/xyz with vak-107")
	if parsed.ProductCode != "VAK-107" {
		t.Errorf("product code = %q, want VAK-107", parsed.ProductCode)
	}
}

func TestParseMessageTextActions(t *testing.T) {
	for _, action := range []string{"1", "2", "3", "approve", "redo", "cancel", "edit caption", "post now", "reel this", "extend"} {
		parsed := ParseMessageText(action)
		if parsed.Command != action {
			t.Errorf("ParseMessageText(%q).Command = %q", action, parsed.Command)
		}
	}
	parsed := ParseMessageText("Extend with a slow zoom")
	if parsed.Command != "extend with a slow zoom" {
		t.Errorf("extend-with-args command = %q", parsed.Command)
	}
	parsed = ParseMessageText("schedule tomorrow 9am")
	if parsed.Command != "schedule tomorrow 9am" {
		t.Errorf("schedule command = %q", parsed.Command)
	}
}

func TestParseMessageTextReelCommand(t *testing.T) {
	parsed := ParseMessageText("/reel https://www.instagram.com/p/abc/ VAK-042")
	if parsed.Command != "/reel" {
		t.Errorf("command = %q, want /reel", parsed.Command)
	}
	if parsed.MediaOverride != "reel" {
		t.Errorf("media override = %q, want reel", parsed.MediaOverride)
	}
	if parsed.SourceURL == "" {
		t.Error("source url not extracted from /reel command")
	}
}

func TestParseMessageTextAdCommand(t *testing.T) {
	parsed := ParseMessageText("/ad https://www.instagram.com/p/abc/")
	if parsed.MediaOverride != "ad" {
		t.Errorf("media override = %q, want ad", parsed.MediaOverride)
	}
}

func TestParseMessageTextOverrideKeywords(t *testing.T) {
	parsed := ParseMessageText("https://pin.it/xyz make it a reel")
	if parsed.MediaOverride != "reel" {
		t.Errorf("media override = %q, want reel", parsed.MediaOverride)
	}
	parsed = ParseMessageText("https://pin.it/xyz no video please")
	if parsed.MediaOverride != "image" {
		t.Errorf("media override = %q, want image", parsed.MediaOverride)
	}
}

func TestIsSupportedReferenceURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.instagram.com/p/abc/", true},
		{"https://instagram.com/reel/xyz/", true},
		{"https://pinterest.com/pin/123/", true},
		{"https://in.pinterest.com/pin/123/", true},
		{"https://pin.it/abc", true},
		{"https://tiktok.com/@user/video/1", false},
		{"", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := IsSupportedReferenceURL(tt.url); got != tt.want {
			t.Errorf("IsSupportedReferenceURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestParseCallback(t *testing.T) {
	parsed := ParseCallback("post:17:variant:2:action:select")
	if parsed == nil {
		t.Fatal("valid callback not parsed")
	}
	if parsed.PostID != 17 || parsed.Variant != 2 || parsed.Action != ActionSelect {
		t.Errorf("parsed = %+v", parsed)
	}

	for _, bad := range []string{
		"",
		"post:17:variant:2:action:explode",
		"garbage",
		"post:x:variant:2:action:select",
	} {
		if got := ParseCallback(bad); got != nil {
			t.Errorf("ParseCallback(%q) = %+v, want nil", bad, got)
		}
	}
}

func TestMakeCallbackRoundTrip(t *testing.T) {
	data := MakeCallback(42, 3, ActionSelectVideo)
	parsed := ParseCallback(data)
	if parsed == nil {
		t.Fatalf("round trip failed for %q", data)
	}
	if parsed.PostID != 42 || parsed.Variant != 3 || parsed.Action != ActionSelectVideo {
		t.Errorf("parsed = %+v", parsed)
	}
}
