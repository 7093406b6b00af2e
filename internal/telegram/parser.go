package telegram

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	productCodeRegex = regexp.MustCompile(`(?i)\bVAK-\d{3,}\b`)
	urlRegex         = regexp.MustCompile(`https?://\S+`)
)

var supportedHosts = map[string]bool{
	"instagram.com":     true,
	"www.instagram.com": true,
	"pinterest.com":     true,
	"www.pinterest.com": true,
	"pin.it":            true,
}

// actionWords are the replies the review flow recognizes as commands.
var actionWords = map[string]bool{
	"1":            true,
	"2":            true,
	"3":            true,
	"approve":      true,
	"redo":         true,
	"cancel":       true,
	"edit caption": true,
	"post now":     true,
	"reel this":    true,
	"extend":       true,
}

// ParsedMessage is the structured reading of an incoming chat message.
type ParsedMessage struct {
	Command       string
	SourceURL     string
	ProductCode   string
	FreeText      string
	MediaOverride string // "reel", "image", "ad", or ""
}

// ExtractFirstURL returns the first URL in the text, or "".
func ExtractFirstURL(text string) string {
	return strings.TrimSpace(urlRegex.FindString(text))
}

// ExtractProductCode returns the first product code in the text, uppercased.
func ExtractProductCode(text string) string {
	return strings.ToUpper(productCodeRegex.FindString(text))
}

// IsSupportedReferenceURL reports whether the link comes from a source the
// downloader can handle.
func IsSupportedReferenceURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if supportedHosts[host] {
		return true
	}
	for h := range supportedHosts {
		if strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ParseMessageText classifies a chat message into a command, an action word,
// or an ingestion request with optional link, product code, and override.
func ParseMessageText(text string) ParsedMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParsedMessage{}
	}

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "/") {
		command := strings.Fields(lower)[0]
		switch command {
		case "/reel":
			return ParsedMessage{
				Command:       command,
				SourceURL:     ExtractFirstURL(text),
				ProductCode:   ExtractProductCode(text),
				FreeText:      text,
				MediaOverride: "reel",
			}
		case "/ad":
			return ParsedMessage{
				Command:       command,
				SourceURL:     ExtractFirstURL(text),
				ProductCode:   ExtractProductCode(text),
				FreeText:      text,
				MediaOverride: "ad",
			}
		}
		return ParsedMessage{Command: command, FreeText: text}
	}

	if actionWords[lower] ||
		strings.HasPrefix(lower, "schedule") ||
		strings.HasPrefix(lower, "extend ") ||
		strings.HasPrefix(lower, "redo ") {
		return ParsedMessage{Command: lower, FreeText: text}
	}

	return ParsedMessage{
		SourceURL:     ExtractFirstURL(text),
		ProductCode:   ExtractProductCode(text),
		FreeText:      text,
		MediaOverride: DetectUserOverride(text),
	}
}
