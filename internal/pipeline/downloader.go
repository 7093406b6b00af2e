package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
)

// DataBrightDownloader fetches a reference post's media and caption through
// the DataBright social scraping API.
type DataBrightDownloader struct {
	apiKey     string
	baseURL    string
	dryRun     bool
	httpClient *http.Client
}

// NewDataBrightDownloader builds a downloader from settings.
func NewDataBrightDownloader(settings *config.Settings) *DataBrightDownloader {
	return &DataBrightDownloader{
		apiKey:     settings.DataBrightAPIKey,
		baseURL:    strings.TrimRight(settings.DataBrightBaseURL, "/"),
		dryRun:     settings.DryRun,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type dataBrightResponse struct {
	Status    string   `json:"status"`
	MediaType string   `json:"media_type"`
	Images    []string `json:"images"`
	VideoURL  string   `json:"video_url"`
	Caption   string   `json:"caption"`
	Hashtags  string   `json:"hashtags"`
}

// DownloadPost fetches the post behind sourceURL. Only Instagram and
// Pinterest links are accepted.
func (d *DataBrightDownloader) DownloadPost(ctx context.Context, sourceURL string) (*DownloadedReference, error) {
	if err := validateSource(sourceURL); err != nil {
		return nil, err
	}

	if d.dryRun {
		return &DownloadedReference{
			SourceURL: sourceURL,
			ImageURLs: []string{"https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=1080"},
			Caption:   "Hand-painted saree inspiration",
			Hashtags:  "#handpaintedsaree #artisanmade",
			MediaType: "image",
		}, nil
	}

	if d.apiKey == "" {
		return nil, DownloadError(fmt.Errorf("missing DATABRIGHT_API_KEY"))
	}

	body, err := json.Marshal(map[string]string{"url": sourceURL})
	if err != nil {
		return nil, DownloadError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/social/download", bytes.NewReader(body))
	if err != nil {
		return nil, DownloadError(err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, DownloadError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, DownloadError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, DownloadError(fmt.Errorf("databright returned %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var data dataBrightResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, DownloadError(fmt.Errorf("parsing databright response: %w", err))
	}

	switch data.Status {
	case "private", "deleted":
		return nil, PrivatePostError(nil)
	}

	mediaType := strings.ToLower(data.MediaType)
	isVideo := mediaType == "reel" || mediaType == "video" || mediaType == "story"
	if isVideo && data.VideoURL == "" {
		return nil, UnsupportedMediaError(fmt.Errorf("video post without video URL"))
	}
	if !isVideo && len(data.Images) == 0 {
		return nil, DownloadError(fmt.Errorf("no images returned"))
	}

	ref := &DownloadedReference{
		SourceURL: sourceURL,
		ImageURLs: data.Images,
		VideoURL:  data.VideoURL,
		Caption:   data.Caption,
		Hashtags:  data.Hashtags,
		MediaType: "image",
	}
	if isVideo {
		ref.MediaType = "reel"
	}

	log.Debug().Str("source_url", sourceURL).Str("media_type", ref.MediaType).
		Int("images", len(ref.ImageURLs)).Msg("Reference downloaded")
	return ref, nil
}

func validateSource(sourceURL string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return DownloadError(err)
	}
	host := strings.ToLower(parsed.Hostname())
	if !strings.Contains(host, "instagram.com") &&
		!strings.Contains(host, "pinterest.com") &&
		!strings.Contains(host, "pin.it") {
		return DownloadError(fmt.Errorf("unsupported source %q", host))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
