package pipeline

// styler.go calls the Gemini image model via REST. Direct HTTP is used
// instead of the genai SDK because the SDK does not expose image output for
// the image-preview models.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// variationModifiers steer each styled variant in a slightly different
// direction. At most three variants are generated per post.
var variationModifiers = []string{
	"Minimal styling, let the saree dominate the frame.",
	"Warm and inviting, lean into golden light and soft props.",
	"Editorial and bold, high contrast, magazine cover energy.",
}

// GeminiStyler renders product photos in the reference's aesthetic.
type GeminiStyler struct {
	apiKey     string
	model      string
	dryRun     bool
	storage    Storage
	httpClient *http.Client
}

// NewGeminiStyler builds a styler from settings.
func NewGeminiStyler(settings *config.Settings, storage Storage) *GeminiStyler {
	return &GeminiStyler{
		apiKey:  settings.GoogleAPIKey,
		model:   settings.GeminiImageModel,
		dryRun:  settings.DryRun,
		storage: storage,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // image generation can take over a minute
		},
	}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// GenerateVariants produces up to three styled renderings, one image per
// saree photo each, uploaded to storage as they are generated.
func (g *GeminiStyler) GenerateVariants(ctx context.Context, sareeImages []string, referenceImageURL string, brief *StyleBrief, overlayText string, aspectRatio string) ([]StyledVariant, error) {
	if len(sareeImages) == 0 {
		return nil, StylingError(fmt.Errorf("no saree images to style"))
	}

	if g.dryRun {
		return g.dryRunVariants(ctx, sareeImages)
	}
	if g.apiKey == "" {
		return nil, StylingError(fmt.Errorf("missing GOOGLE_API_KEY"))
	}

	refData, refMIME, err := fetchImage(ctx, g.httpClient, referenceImageURL)
	if err != nil {
		return nil, StylingError(fmt.Errorf("downloading reference image: %w", err))
	}

	batchID := strings.ReplaceAll(uuid.NewString(), "-", "")
	var variants []StyledVariant

	for idx, modifier := range variationModifiers {
		variantIndex := idx + 1
		prompt := g.buildPrompt(brief, overlayText, modifier, aspectRatio)
		var itemURLs []string

		for position, sareeURL := range sareeImages {
			sareeData, sareeMIME, err := fetchImage(ctx, g.httpClient, sareeURL)
			if err != nil {
				return nil, StylingError(fmt.Errorf("downloading saree image: %w", err))
			}

			imageBytes, err := g.generateOne(ctx, prompt, refData, refMIME, sareeData, sareeMIME)
			if err != nil {
				return nil, err
			}

			key := fmt.Sprintf("styled/post-%s/variant-%d/item-%d.jpg", batchID, variantIndex, position+1)
			itemURL, err := g.storage.UploadBytes(ctx, key, imageBytes, "image/jpeg")
			if err != nil {
				return nil, StylingError(err)
			}
			itemURLs = append(itemURLs, itemURL)
			log.Info().Int("variant", variantIndex).Int("position", position+1).Msg("Styled image generated")
		}

		variants = append(variants, StyledVariant{
			VariantIndex: variantIndex,
			PreviewURL:   itemURLs[0],
			ItemURLs:     itemURLs,
			IsValid:      true,
		})
	}
	return variants, nil
}

func (g *GeminiStyler) buildPrompt(brief *StyleBrief, overlayText, modifier, aspectRatio string) string {
	var b strings.Builder
	b.WriteString(stylingPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Layout: %s\n", brief.LayoutType)
	fmt.Fprintf(&b, "Placement: %s\n", brief.Composition.ProductPlacement)
	fmt.Fprintf(&b, "Background: %s\n", brief.Background.SuggestedBgForSaree)
	fmt.Fprintf(&b, "Lighting: %s\n", brief.Lighting)
	fmt.Fprintf(&b, "Palette: %s (%s)\n", brief.ColorMood.PaletteName, brief.ColorMood.Temperature)
	fmt.Fprintf(&b, "Dominant colors: %s\n", strings.Join(brief.ColorMood.DominantColors, ", "))
	fmt.Fprintf(&b, "Vibe: %s\n", strings.Join(brief.VibeWords, ", "))
	fmt.Fprintf(&b, "Variation modifier: %s\n", modifier)
	if aspectRatio != "" {
		fmt.Fprintf(&b, "Aspect ratio: %s\n", aspectRatio)
	}
	if overlayText != "" {
		fmt.Fprintf(&b, "Overlay text: %s\n", overlayText)
	}
	return b.String()
}

func (g *GeminiStyler) generateOne(ctx context.Context, prompt string, refData []byte, refMIME string, sareeData []byte, sareeMIME string) ([]byte, error) {
	req := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{Text: "Reference image (style inspiration):"},
				{InlineData: &geminiBlobData{MIMEType: refMIME, Data: base64.StdEncoding.EncodeToString(refData)}},
				{Text: "Saree image (keep product accurate):"},
				{InlineData: &geminiBlobData{MIMEType: sareeMIME, Data: base64.StdEncoding.EncodeToString(sareeData)}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, StylingError(err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, StylingError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, StylingError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, StylingError(err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("model", g.model).
			Str("body", truncate(string(respBody), 500)).Msg("Gemini styling request failed")
		return nil, StylingError(fmt.Errorf("gemini returned %d", resp.StatusCode))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, StylingError(fmt.Errorf("parsing gemini response: %w", err))
	}
	if parsed.Error != nil {
		return nil, StylingError(fmt.Errorf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}

	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, StylingError(fmt.Errorf("decoding image data: %w", err))
				}
				return decoded, nil
			}
		}
	}
	return nil, StylingError(fmt.Errorf("gemini did not return an image"))
}

// dryRunVariants uploads the source photos untouched so the rest of the
// pipeline has real URLs to work with.
func (g *GeminiStyler) dryRunVariants(ctx context.Context, sareeImages []string) ([]StyledVariant, error) {
	batchID := strings.ReplaceAll(uuid.NewString(), "-", "")
	var variants []StyledVariant
	for idx := range variationModifiers {
		variantIndex := idx + 1
		var itemURLs []string
		for position := range sareeImages {
			key := fmt.Sprintf("styled/post-%s/variant-%d/item-%d.jpg", batchID, variantIndex, position+1)
			itemURL, err := g.storage.UploadBytes(ctx, key, []byte("placeholder"), "image/jpeg")
			if err != nil {
				return nil, StylingError(err)
			}
			itemURLs = append(itemURLs, itemURL)
		}
		variants = append(variants, StyledVariant{
			VariantIndex: variantIndex,
			PreviewURL:   itemURLs[0],
			ItemURLs:     itemURLs,
			SSIMScore:    0.82,
			IsValid:      true,
		})
	}
	return variants, nil
}

// fetchImage downloads a URL and returns its bytes and MIME type.
func fetchImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching %s: status %d", imageURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	mime := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}
