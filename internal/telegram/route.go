package telegram

import (
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/pipeline"
)

// Keywords that override auto-detection. Image overrides are checked first:
// negation patterns like "no video" must beat the bare "video" reel keyword.
var reelOverrideKeywords = []string{
	"make it a reel",
	"reel this",
	"make a reel",
	"reel instead",
	"want a video",
	"video",
}

var imageOverrideKeywords = []string{
	"just the photo",
	"image only",
	"no video",
	"photo post",
	"static",
}

// DetectMediaType reports whether a URL points to an image post or a reel.
// Returns "reel", "image", or "unknown".
func DetectMediaType(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)

	if strings.Contains(host, "instagram.com") {
		switch {
		case strings.Contains(path, "/reel/") || strings.Contains(path, "/reels/"):
			return "reel"
		case strings.Contains(path, "/p/"):
			return "image"
		case strings.Contains(path, "/tv/"): // IGTV, legacy video
			return "reel"
		}
	}

	// Pinterest links don't encode the media type; resolve after download.
	if strings.Contains(host, "pinterest.com") || strings.Contains(host, "pin.it") {
		return "unknown"
	}
	return "unknown"
}

// DetectUserOverride checks message text for an explicit media-type override.
// Returns "reel", "image", or "".
func DetectUserOverride(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return ""
	}
	for _, keyword := range imageOverrideKeywords {
		if strings.Contains(lower, keyword) {
			return "image"
		}
	}
	for _, keyword := range reelOverrideKeywords {
		if strings.Contains(lower, keyword) {
			return "reel"
		}
	}
	return ""
}

// ConfirmMediaTypeFromFile checks the downloaded file's MIME type, falling
// back to URL detection when the extension is ambiguous.
func ConfirmMediaTypeFromFile(filePath, urlHint string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return "reel"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	}
	return DetectMediaType(urlHint)
}

// ResolvePipelineType decides which pipeline handles a link. User overrides
// always win; ambiguous links default to the image path.
func ResolvePipelineType(rawURL, userText string) string {
	if override := DetectUserOverride(userText); override != "" {
		log.Info().Str("override", override).Msg("Pipeline type from user override")
		return override
	}
	if detected := DetectMediaType(rawURL); detected != "unknown" {
		log.Info().Str("detected", detected).Str("url", rawURL).Msg("Pipeline type from URL")
		return detected
	}
	log.Info().Str("url", rawURL).Msg("Pipeline type ambiguous, defaulting to image")
	return "image"
}

// durationTokenPattern matches explicit duration spellings: clock forms
// ("0:30") or a number with a unit ("15s", "30 seconds", "32000ms"). Bare
// numbers are left alone so product codes and URLs never read as durations.
var durationTokenPattern = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}(?::\d{2})?|\d+(?:\.\d+)?\s*(?:ms|s|sec|seconds?))\b`)

// AdPresetFromText picks the ad structure preset for a message. A requested
// duration ("make a 15 second ad") maps to the nearest preset; without one
// the 30-second structure is used.
func AdPresetFromText(text string) string {
	token := durationTokenPattern.FindString(text)
	if token == "" {
		return "30_second_reel"
	}
	seconds, err := pipeline.ParseSeconds(token)
	if err != nil {
		return "30_second_reel"
	}
	preset := pipeline.PresetForDuration(seconds)
	log.Info().Str("token", token).Int("seconds", seconds).Str("preset", preset).Msg("Ad preset from requested duration")
	return preset
}
