package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/jsonutil"
)

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// ClaudeCaptioner writes the caption package with the Anthropic Messages API,
// vision input plus a JSON response.
type ClaudeCaptioner struct {
	apiKey     string
	model      string
	dryRun     bool
	httpClient *http.Client
}

// NewClaudeCaptioner builds a captioner from settings.
func NewClaudeCaptioner(settings *config.Settings) *ClaudeCaptioner {
	return &ClaudeCaptioner{
		apiKey:     settings.AnthropicAPIKey,
		model:      settings.ClaudeModel,
		dryRun:     settings.DryRun,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

const dryRunHashtags = "#vakstudios #handpaintedsaree #vakclothing #silksaree #artisanmade " +
	"#oneofone #sareelovers #slowfashionindia #craftedwithlove #handpaintedfashion " +
	"#weddingguest #indianfashion #handloomlove #limitededition " +
	"#madebyhands #wearart #sareestyle #shopindian #consciousfashion"

// GenerateCaption writes the caption, hashtags, and alt text for a styled
// preview. With isReel set the package also carries the cover frame fields.
func (c *ClaudeCaptioner) GenerateCaption(ctx context.Context, styledImageURL string, brief *StyleBrief, product ProductInfo, isReel bool) (*CaptionPackage, error) {
	if c.dryRun {
		if isReel {
			return &CaptionPackage{
				Caption: "Three days of painting. Eight seconds of magic. " +
					"This hand-painted Vâk saree was built slowly by hand.",
				Hashtags:              dryRunHashtags + " #reelsinstagram #fashionreels #sareedraping",
				AltText:               "Video showing a hand-painted saree in motion, fabric flowing gently.",
				CoverFrameDescription: "The moment the pallu catches light",
				ThumbOffsetMs:         3000,
			}, nil
		}
		return &CaptionPackage{
			Caption: "Some pieces don't just dress you, they speak for you. " +
				"This hand-painted Vâk saree was built slowly by hand so every brushstroke stays personal. " +
				"Wear it for an evening celebration or when you simply want to feel unmistakably like yourself.",
			Hashtags: dryRunHashtags,
			AltText:  "Hand-painted saree in warm tones styled on a textured Indian-inspired background with brass props.",
		}, nil
	}

	if c.apiKey == "" {
		return nil, CaptionError(fmt.Errorf("missing ANTHROPIC_API_KEY"))
	}

	prompt := captionPrompt
	if isReel {
		prompt += "\n\n" + reelCaptionAddon
	}

	briefJSON, err := json.Marshal(brief)
	if err != nil {
		return nil, CaptionError(err)
	}
	productJSON, err := json.Marshal(product)
	if err != nil {
		return nil, CaptionError(err)
	}

	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 900,
		"system":     prompt,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{
						"type":   "image",
						"source": map[string]any{"type": "url", "url": styledImageURL},
					},
					map[string]any{
						"type": "text",
						"text": fmt.Sprintf("Style brief: %s\nProduct details: %s\n\nGenerate a caption package for this styled image.",
							briefJSON, productJSON),
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, CaptionError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, CaptionError(err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, CaptionError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, CaptionError(err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("model", c.model).
			Str("body_preview", truncate(string(raw), 400)).Msg("Claude caption request failed")
		return nil, CaptionError(fmt.Errorf("anthropic returned %d", resp.StatusCode))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, CaptionError(fmt.Errorf("parsing anthropic response: %w", err))
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	if text == "" {
		return nil, CaptionError(fmt.Errorf("anthropic response did not contain text output"))
	}
	log.Info().Str("model", c.model).Str("preview", truncate(text, 300)).Msg("Caption generated")

	pkg, err := jsonutil.ParseJSON[CaptionPackage](text)
	if err != nil {
		return nil, CaptionError(err)
	}
	if isReel {
		pkg.Kind = CaptionKindReel
		if pkg.ThumbOffsetMs == 0 {
			pkg.ThumbOffsetMs = 3000
		}
	} else {
		pkg.Kind = CaptionKindImage
		pkg.CoverFrameDescription = ""
		pkg.ThumbOffsetMs = 0
	}
	return &pkg, nil
}
