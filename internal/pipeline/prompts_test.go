package pipeline

import (
	"strings"
	"testing"
)

func TestInferVideoType(t *testing.T) {
	tests := []struct {
		name  string
		brief StyleBrief
		want  string
	}{
		{
			name: "analyzer recommendation wins",
			brief: StyleBrief{
				LayoutType:    "flat-lay",
				VideoAnalysis: &VideoAnalysis{RecommendedVideoType: "close-up"},
			},
			want: "close-up",
		},
		{
			name:  "close-up layout",
			brief: StyleBrief{LayoutType: "close-up"},
			want:  "close-up",
		},
		{
			name:  "on-model layout maps to lifestyle",
			brief: StyleBrief{LayoutType: "on-model"},
			want:  "lifestyle",
		},
		{
			name:  "flat-lay maps to reveal",
			brief: StyleBrief{LayoutType: "flat-lay"},
			want:  "reveal",
		},
		{
			name:  "unknown layout falls back to fabric-flow",
			brief: StyleBrief{LayoutType: "grid"},
			want:  "fabric-flow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferVideoType(&tt.brief); got != tt.want {
				t.Errorf("InferVideoType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildVideoPromptUsesAnalysisFields(t *testing.T) {
	brief := &StyleBrief{
		LayoutType: "draped",
		ColorMood:  ColorMood{PaletteName: "jewel-toned", Temperature: "cool"},
		Background: BackgroundSpec{SuggestedBgForSaree: "deep blue velvet backdrop"},
		Lighting:   "moody-dark",
		VibeWords:  []string{"regal", "dramatic"},
		VideoAnalysis: &VideoAnalysis{
			CameraMotion:         "orbit",
			Pacing:               "gentle",
			RecommendedVideoType: "fabric-flow",
			RecommendedDuration:  16,
		},
	}

	prompt := BuildVideoPrompt(brief, "")

	for _, want := range []string{
		"jewel-toned", "cool", "deep blue velvet backdrop",
		"moody-dark", "orbit", "gentle", "regal, dramatic", "16 seconds",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.Contains(prompt, "MOTION CONSTRAINTS") {
		t.Error("prompt missing motion constraints section")
	}
}

func TestBuildVideoPromptKeywords(t *testing.T) {
	brief := &StyleBrief{
		LayoutType: "draped",
		ColorMood:  ColorMood{PaletteName: "earthy", Temperature: "warm"},
		VibeWords:  []string{"warm", "organic"},
	}

	flow := strings.ToLower(BuildVideoPrompt(brief, "fabric-flow"))
	for _, want := range []string{"fabric", "saree"} {
		if !strings.Contains(flow, want) {
			t.Errorf("fabric-flow prompt missing %q", want)
		}
	}
	if !strings.Contains(flow, "9:16") {
		t.Error("fabric-flow prompt missing 9:16 format directive")
	}

	closeUp := strings.ToLower(BuildVideoPrompt(brief, "close-up"))
	if !strings.Contains(closeUp, "zoom") {
		t.Error("close-up prompt missing zoom")
	}

	for _, vt := range []string{"fabric-flow", "close-up", "lifestyle", "reveal"} {
		prompt := BuildVideoPrompt(brief, vt)
		if !strings.Contains(prompt, "CRITICAL RULES") {
			t.Errorf("%s prompt missing preservation rules", vt)
		}
		if !strings.Contains(strings.ToLower(prompt), "saree") {
			t.Errorf("%s prompt missing saree", vt)
		}
	}
}

func TestBuildVideoPromptEmptyBriefUsesDefaults(t *testing.T) {
	prompt := BuildVideoPrompt(&StyleBrief{}, "")
	for _, want := range []string{
		"slow-pan", "slow-dreamy", "neutral warm background",
		"natural-soft", "elegant, luxurious, handcrafted", "8 seconds",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("default prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildVideoPromptUnknownTypeFallsBack(t *testing.T) {
	brief := &StyleBrief{LayoutType: "draped"}
	prompt := BuildVideoPrompt(brief, "time-lapse")
	if !strings.Contains(prompt, "Gentle breeze") {
		t.Error("unknown video type should fall back to fabric-flow base motion")
	}
}

func TestAdStructure(t *testing.T) {
	scenes := AdStructure("30_second_reel")
	if len(scenes) != 4 {
		t.Fatalf("got %d scenes, want 4", len(scenes))
	}
	if scenes[0].SceneType != "reveal" {
		t.Errorf("first scene = %q, want reveal", scenes[0].SceneType)
	}

	fallback := AdStructure("no-such-preset")
	if len(fallback) != len(scenes) {
		t.Error("unknown preset should fall back to 30_second_reel")
	}
}

func TestNegativePromptNonEmpty(t *testing.T) {
	np := NegativePrompt()
	if np == "" {
		t.Fatal("negative prompt is empty")
	}
	if !strings.Contains(np, "warped fabric") {
		t.Error("negative prompt missing product protection terms")
	}
}
