// Package instagram publishes approved posts through the Meta Graph API
// content publishing endpoints: single images, carousels (up to 20 items),
// and reels.
//
// Publishing is a multi-step process:
//  1. Create media containers (one per item, referenced by public URL)
//  2. For carousels: create a carousel container referencing child containers
//  3. For reels: poll container status until server-side processing completes
//  4. Publish the container, then fetch the permalink
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/pipeline"
)

const (
	defaultTimeout = 60 * time.Second

	// maxCarouselItems is the Instagram carousel size limit.
	maxCarouselItems = 20

	// Reel container processing poll settings.
	initialPollInterval = 5 * time.Second
	maxPollInterval     = 30 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// Client publishes to an Instagram business account via the Meta Graph API.
// It implements pipeline.Publisher.
type Client struct {
	httpClient  *http.Client
	accessToken string
	accountID   string
	appID       string
	appSecret   string
	baseURL     string
	dryRun      bool
}

// NewClient creates a Graph API client from the Meta settings.
func NewClient(settings *config.Settings) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		accessToken: settings.MetaPageAccessToken,
		accountID:   settings.InstagramBusinessAccountID,
		appID:       settings.MetaAppID,
		appSecret:   settings.MetaAppSecret,
		baseURL:     "https://graph.facebook.com/" + settings.MetaGraphAPIVersion,
		dryRun:      settings.DryRun,
	}
}

// --- API response types ---

type apiResponse struct {
	ID    string  `json:"id"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code,status.
type containerStatusResponse struct {
	ID         string  `json:"id"`
	StatusCode string  `json:"status_code"` // IN_PROGRESS, FINISHED, ERROR
	Status     string  `json:"status,omitempty"`
	Error      *apiErr `json:"error,omitempty"`
}

type permalinkResponse struct {
	ID        string  `json:"id"`
	Permalink string  `json:"permalink"`
	Error     *apiErr `json:"error,omitempty"`
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int64   `json:"expires_in"`
	Error       *apiErr `json:"error,omitempty"`
}

// --- pipeline.Publisher ---

// PostSingleImage creates and publishes a single-image post.
func (c *Client) PostSingleImage(ctx context.Context, imageURL, caption, altText, idempotencyKey string) (*pipeline.PublishResult, error) {
	if c.dryRun {
		return dryRunResult(idempotencyKey), nil
	}

	params := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}
	if altText != "" {
		params.Set("alt_text", altText)
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.accountID), params)
	if err != nil {
		return nil, pipeline.PublishError(fmt.Errorf("create image container: %w", err))
	}
	return c.publishAndResolve(ctx, resp.ID)
}

// PostCarousel creates child containers for each image, wraps them in a
// carousel container, and publishes it.
func (c *Client) PostCarousel(ctx context.Context, imageURLs []string, caption, altText, idempotencyKey string) (*pipeline.PublishResult, error) {
	if len(imageURLs) < 2 {
		return nil, pipeline.PublishError(fmt.Errorf("carousel requires at least 2 items, got %d", len(imageURLs)))
	}
	if len(imageURLs) > maxCarouselItems {
		return nil, pipeline.PublishError(fmt.Errorf("carousel supports at most %d items, got %d", maxCarouselItems, len(imageURLs)))
	}
	if c.dryRun {
		return dryRunResult(idempotencyKey), nil
	}

	children := make([]string, 0, len(imageURLs))
	for _, imageURL := range imageURLs {
		resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.accountID), url.Values{
			"image_url":        {imageURL},
			"is_carousel_item": {"true"},
			"access_token":     {c.accessToken},
		})
		if err != nil {
			return nil, pipeline.PublishError(fmt.Errorf("create carousel child: %w", err))
		}
		children = append(children, resp.ID)
	}
	log.Info().Int("children", len(children)).Msg("Carousel children created")

	params := url.Values{
		"media_type":   {"CAROUSEL"},
		"children":     {strings.Join(children, ",")},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}
	if altText != "" {
		params.Set("alt_text", altText)
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.accountID), params)
	if err != nil {
		return nil, pipeline.PublishError(fmt.Errorf("create carousel container: %w", err))
	}
	return c.publishAndResolve(ctx, resp.ID)
}

// PostReel creates a reel container, waits for Instagram's server-side
// processing to finish, then publishes it.
func (c *Client) PostReel(ctx context.Context, videoURL, caption string, thumbOffsetMs int, idempotencyKey string) (*pipeline.PublishResult, error) {
	if c.dryRun {
		return dryRunResult(idempotencyKey), nil
	}

	params := url.Values{
		"media_type":   {"REELS"},
		"video_url":    {videoURL},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}
	if thumbOffsetMs > 0 {
		params.Set("thumb_offset", strconv.Itoa(thumbOffsetMs))
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.accountID), params)
	if err != nil {
		return nil, pipeline.PublishError(fmt.Errorf("create reel container: %w", err))
	}

	if err := c.waitForContainer(ctx, resp.ID, defaultPollTimeout); err != nil {
		return nil, pipeline.PublishError(err)
	}
	return c.publishAndResolve(ctx, resp.ID)
}

// RefreshPageToken exchanges the current page token for a fresh long-lived
// one and returns its lifetime in seconds.
func (c *Client) RefreshPageToken(ctx context.Context) (int64, error) {
	if c.dryRun {
		return 60 * 24 * 3600, nil
	}
	if c.accessToken == "" {
		return 0, pipeline.PublishError(fmt.Errorf("missing META_PAGE_ACCESS_TOKEN"))
	}

	endpoint := fmt.Sprintf("/oauth/access_token?grant_type=fb_exchange_token&client_id=%s&client_secret=%s&fb_exchange_token=%s",
		url.QueryEscape(c.appID), url.QueryEscape(c.appSecret), url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return 0, pipeline.PublishError(err)
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, pipeline.PublishError(fmt.Errorf("token exchange: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, pipeline.PublishError(err)
	}
	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return 0, pipeline.PublishError(fmt.Errorf("parse token response: %w", err))
	}
	if token.Error != nil {
		return 0, pipeline.PublishError(fmt.Errorf("token exchange: %s (code %d)", token.Error.Message, token.Error.Code))
	}
	c.accessToken = token.AccessToken
	log.Info().Int64("expires_in", token.ExpiresIn).Msg("Page token refreshed")
	return token.ExpiresIn, nil
}

// --- Publishing internals ---

// publishAndResolve publishes a finished container and fetches the permalink.
func (c *Client) publishAndResolve(ctx context.Context, containerID string) (*pipeline.PublishResult, error) {
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", c.accountID), url.Values{
		"creation_id":  {containerID},
		"access_token": {c.accessToken},
	})
	if err != nil {
		return nil, pipeline.PublishError(fmt.Errorf("publish container %s: %w", containerID, err))
	}
	log.Info().Str("container_id", containerID).Str("media_id", resp.ID).Msg("Container published")

	permalink, err := c.fetchPermalink(ctx, resp.ID)
	if err != nil {
		// The post is live even if the permalink lookup fails.
		log.Warn().Err(err).Str("media_id", resp.ID).Msg("Permalink lookup failed")
	}
	return &pipeline.PublishResult{MediaID: resp.ID, Permalink: permalink}, nil
}

func (c *Client) fetchPermalink(ctx context.Context, mediaID string) (string, error) {
	endpoint := fmt.Sprintf("/%s?fields=permalink&access_token=%s", mediaID, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", err
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}
	var resp permalinkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("permalink lookup: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	return resp.Permalink, nil
}

// --- Status polling ---

// containerStatus returns the processing status of a media container:
// IN_PROGRESS, FINISHED, or ERROR.
func (c *Client) containerStatus(ctx context.Context, containerID string) (string, error) {
	endpoint := fmt.Sprintf("/%s?fields=status_code,status&access_token=%s",
		containerID, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("container status request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var status containerStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if status.Error != nil {
		return "", fmt.Errorf("API error: %s (code %d)", status.Error.Message, status.Error.Code)
	}
	return status.StatusCode, nil
}

// waitForContainer polls container status until FINISHED or ERROR.
// Uses exponential backoff: 5s, 10s, 20s, 30s (max).
func (c *Client) waitForContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultPollTimeout
	}

	deadline := time.Now().Add(timeout)
	interval := initialPollInterval

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("container %s: timed out after %s waiting for processing", containerID, timeout)
		}

		status, err := c.containerStatus(ctx, containerID)
		if err != nil {
			// Transient, retry on the next tick.
			log.Warn().Err(err).Str("container_id", containerID).Msg("Container status poll error, retrying")
		} else {
			switch status {
			case "FINISHED":
				return nil
			case "ERROR":
				return fmt.Errorf("container %s: processing failed on Instagram's side", containerID)
			case "IN_PROGRESS":
				log.Debug().Str("container_id", containerID).Dur("next_poll", interval).Msg("Container still processing")
			default:
				log.Warn().Str("container_id", containerID).Str("status", status).Msg("Unknown container status")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval = interval * 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

// --- Internal helpers ---

func dryRunResult(idempotencyKey string) *pipeline.PublishResult {
	return &pipeline.PublishResult{
		MediaID:   "dryrun_" + idempotencyKey,
		Permalink: "https://instagram.com/p/" + idempotencyKey,
	}
}

// postForm sends a POST request with form-encoded parameters to the Graph API.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Str("path", endpoint).Int("status_code", httpResp.StatusCode).Dur("duration", duration).Msg("Graph API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("Graph API error: %s (type: %s, code: %d)",
			resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("unexpected response: no ID returned (body: %s)", truncate(string(body), 200))
	}
	return &resp, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
