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

const openAIResponsesURL = "https://api.openai.com/v1/responses"

// OpenAIAnalyzer derives a style brief from a reference image using the
// OpenAI Responses API with vision input.
type OpenAIAnalyzer struct {
	apiKey     string
	model      string
	dryRun     bool
	httpClient *http.Client
}

// NewOpenAIAnalyzer builds an analyzer from settings.
func NewOpenAIAnalyzer(settings *config.Settings) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		apiKey:     settings.OpenAIAPIKey,
		model:      settings.OpenAIModel,
		dryRun:     settings.DryRun,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type openAIResponse struct {
	ID         string `json:"id"`
	OutputText string `json:"output_text"`
	Output     []struct {
		Text    string `json:"text"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// AnalyzeReference asks the vision model to describe the reference post as a
// structured style brief. With forVideo set, the prompt also requests the
// motion fields used by the reel pipeline.
func (a *OpenAIAnalyzer) AnalyzeReference(ctx context.Context, referenceImageURL, referenceCaption string, forVideo bool) (*StyleBrief, error) {
	if a.dryRun {
		return dryRunBrief(forVideo), nil
	}
	if a.apiKey == "" {
		return nil, AnalysisError(fmt.Errorf("missing OPENAI_API_KEY"))
	}

	prompt := analysisPrompt
	if forVideo {
		prompt += "\n\n" + videoAnalysisPrompt
	}
	caption := referenceCaption
	if caption == "" {
		caption = "N/A"
	}

	payload := map[string]any{
		"model": a.model,
		"input": []any{
			map[string]any{"role": "system", "content": prompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": "Reference caption: " + caption},
					map[string]any{"type": "input_image", "image_url": referenceImageURL},
				},
			},
		},
		"text": map[string]any{
			"format": map[string]any{"type": "json_object"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, AnalysisError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIResponsesURL, bytes.NewReader(body))
	if err != nil {
		return nil, AnalysisError(err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, AnalysisError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, AnalysisError(err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("model", a.model).
			Str("body_preview", truncate(string(raw), 400)).Msg("OpenAI analysis request failed")
		return nil, AnalysisError(fmt.Errorf("openai returned %d", resp.StatusCode))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, AnalysisError(fmt.Errorf("parsing openai response: %w", err))
	}

	text, err := extractOpenAIText(&parsed)
	if err != nil {
		return nil, AnalysisError(err)
	}
	log.Info().Str("model", a.model).Str("response_id", parsed.ID).Msg("Reference analysis succeeded")

	brief, err := jsonutil.ParseJSON[StyleBrief](text)
	if err != nil {
		return nil, AnalysisError(err)
	}
	return &brief, nil
}

// extractOpenAIText collects the text output of a Responses API payload,
// which may surface either as output_text or as nested content blocks.
func extractOpenAIText(resp *openAIResponse) (string, error) {
	if resp.OutputText != "" {
		return resp.OutputText, nil
	}
	var parts []string
	for _, item := range resp.Output {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
		for _, block := range item.Content {
			if (block.Type == "output_text" || block.Type == "text") && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("openai response did not contain text output")
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined += "\n" + p
	}
	return joined, nil
}

func dryRunBrief(forVideo bool) *StyleBrief {
	brief := &StyleBrief{
		LayoutType: "flat-lay",
		Composition: Composition{
			ProductPlacement: "center",
			Whitespace:       "moderate",
			TextArea:         "bottom",
			AspectRatio:      "4:5",
		},
		ColorMood: ColorMood{
			Temperature:    "warm",
			DominantColors: []string{"#CFAF7A", "#F5E8D0", "#2C2C2C"},
			PaletteName:    "earthy",
		},
		Background: BackgroundSpec{
			Type:                "textured",
			Description:         "Beige textured surface with brass accents",
			SuggestedBgForSaree: "Warm neutral cloth backdrop with marigold petals and brass diya",
		},
		Lighting: "natural-soft",
		TextOverlay: TextOverlaySpec{
			HasText:      false,
			TextStyle:    "none",
			TextPosition: "none",
			TextPurpose:  "none",
		},
		ContentFormat:   "single-image",
		VibeWords:       []string{"elegant", "warm", "artisan"},
		AdaptationNotes: "Keep saree fully accurate; add Indian props around it only.",
	}
	if forVideo {
		brief.VideoAnalysis = &VideoAnalysis{
			CameraMotion:         "slow-pan",
			Pacing:               "gentle",
			MotionType:           "fabric-flow",
			MotionElements:       "pallu drifting in a light breeze",
			AudioMood:            "calm instrumental",
			RecommendedVideoType: "fabric-flow",
			RecommendedDuration:  8,
			VideoAdaptationNotes: "Keep motion subtle so the brushwork stays legible.",
		}
	}
	return brief
}
