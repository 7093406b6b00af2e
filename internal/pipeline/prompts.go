package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// Prompt text shipped with the binary. The originals lived alongside the
// code as text files; embedding constants keeps deployment to a single
// artifact.

const analysisPrompt = `You are a visual merchandising analyst for a hand-painted saree brand.
Study the attached reference image (an Instagram or Pinterest fashion post) and
the reference caption, and produce a styling brief describing how to recreate
the post's look with one of our sarees.

Return ONLY a JSON object with these fields:
- layout_type: one of "flat-lay", "draped", "on-model", "close-up", "grid", "lifestyle"
- composition: {product_placement, whitespace, text_area, aspect_ratio}
- color_mood: {temperature, dominant_colors (hex list), palette_name}
- background: {type, description, suggested_bg_for_saree}
- lighting: one of "natural-soft", "natural-harsh", "studio", "golden-hour", "moody-dark", "backlit"
- text_overlay: {has_text, text_style, text_position, text_purpose}
- content_format: one of "single-image", "carousel", "before-after", "collage"
- vibe_words: 2-5 adjectives
- adaptation_notes: how to adapt this look while keeping the saree itself untouched

The saree's painted artwork must never be altered. The brief describes the
scene around it: backdrop, props, lighting, framing.`

const videoAnalysisPrompt = `This reference is a video (Reel). Add a "video_analysis" object to the JSON:
- camera_motion: e.g. "slow-pan", "static", "orbit", "push-in"
- pacing: e.g. "slow-dreamy", "gentle", "energetic"
- motion_type: one of "fabric-flow", "close-up", "lifestyle", "reveal"
- motion_elements: what physically moves in the frame
- audio_mood: the soundtrack mood to aim for
- recommended_video_type: one of "fabric-flow", "close-up", "lifestyle", "reveal"
- recommended_duration: seconds (8, 16, 24, or 30)
- video_adaptation_notes: how to translate the motion to a saree subject`

const stylingPrompt = `You are styling a product photo of a hand-painted saree to match a reference
aesthetic. Recreate the reference's backdrop, lighting, props, and framing
around the saree from the product photo.

HARD RULES:
- The saree's painted artwork, colors, and motifs must be preserved exactly.
- Do not repaint, recolor, or redraw any part of the saree fabric.
- Only the environment changes: background, props, lighting, crop.
- Output a photorealistic styled product image.`

const captionPrompt = `You are the social media voice of Vâk, a slow-fashion brand selling
hand-painted sarees made by Indian artisans. Write an Instagram caption for
the attached styled product image.

VOICE: warm, personal, unhurried. First person plural ("we"). No hard sell.
STRUCTURE: hook line, then 2-3 short paragraphs (200-300 words total), then
a gentle call to action.
HASHTAGS: exactly 20, mixing brand tags (#vakstudios #handpaintedsaree),
craft tags, and discovery tags.
ALT TEXT: one sentence describing the image for screen readers.

Return ONLY a JSON object:
{"caption": "...", "hashtags": "#tag1 #tag2 ...", "alt_text": "..."}`

const reelCaptionAddon = `This caption is for a Reel, not a static post.

REEL-SPECIFIC RULES:
- Shorter overall (150-200 words max, not 200-300)
- First line is everything: it shows during autoplay. Make it count.
- Add 2-3 Reels-discovery hashtags: #reelsinstagram #fashionreels #sareedraping #handpaintedfashion
- Suggest a cover frame description (for the Reels thumbnail)
- If the video has native audio, caption should acknowledge the sensory experience

Return as JSON with additional fields:
{"caption": "...", "hashtags": "...", "alt_text": "...",
 "cover_frame_description": "...", "thumb_offset_ms": 3000}`

const veoPromptTemplate = `%s

MOTION CONSTRAINTS:
%s

CRITICAL RULES:
- The saree's hand-painted artwork, colors, and motifs must be preserved exactly as in the start frame
- No repainting, recoloring, or redrawing of the saree fabric at any point in the clip
- Keep the saree sharply in focus as the primary subject

FORMAT: 9:16 vertical video for Instagram Reels
STYLE: %s palette, %s tones
SETTING: %s
LIGHTING: %s
CAMERA: %s
MOTION: %s (%s)
PACING: %s
AUDIO: %s
MOOD: %s
DURATION: %s seconds

%s`

// Base motion descriptions per video type.
var videoTypePrompts = map[string]string{
	"fabric-flow": "Gentle breeze causes the sheer saree fabric to flow and billow softly. " +
		"The pallu lifts and catches light, revealing the translucency and " +
		"hand-painted details. Camera slowly pans across the fabric. " +
		"Soft ambient sound of fabric rustling.",
	"close-up": "Slow cinematic zoom into the hand-painted details on the saree, " +
		"revealing individual brushstrokes and color variations. Camera pulls " +
		"back slowly to show the full drape. Soft, meditative ambient music.",
	"lifestyle": "A graceful woman wearing the saree takes a slow step forward, " +
		"the fabric flowing with her movement. Warm natural lighting. " +
		"Shallow depth of field. Cinematic fashion film aesthetic. " +
		"Soft ambient sounds.",
	"reveal": "The saree starts flat on a surface, then is slowly lifted by " +
		"an unseen hand, revealing its full drape and hand-painted motifs. " +
		"Camera tracks the fabric as it unfurls. Studio lighting. " +
		"Satisfying fabric movement sounds.",
}

// Motion constraints keep generated movement physically plausible.
var videoTypeMotionConstraints = map[string]string{
	"fabric-flow": "- Only the edges and loose fabric should move: the core painted area stays stable\n" +
		"- Movement should be subtle, like a gentle indoor breeze, not outdoor wind\n" +
		"- The pallu can lift 5-10 degrees, no more\n" +
		"- Fabric should move like real silk: fluid, with weight, not like digital cloth\n" +
		"- Light should play across the fabric naturally as it moves",
	"close-up": "- Camera movement only: the saree itself remains completely still\n" +
		"- Zoom should be gradual (think 8 seconds to go from wide to detail)\n" +
		"- Focus rack naturally as depth changes\n" +
		"- The painted details should become MORE visible, not blur\n" +
		"- Pull-back should be even slower than the zoom-in",
	"lifestyle": "- If a model is shown, she moves slowly and deliberately: editorial, not runway\n" +
		"- The saree moves as real fabric would: weight in the pleats, flow in the pallu\n" +
		"- Movement should showcase the drape, not obscure the painted details\n" +
		"- Camera can track or follow, but smoothly, no handheld shake\n" +
		"- Background should have subtle depth and blur, keeping focus on the saree",
	"reveal": "- The lift should feel like real hands lifting real fabric, natural, with weight\n" +
		"- As fabric rises, the painted details should become more visible, not less\n" +
		"- Unfurling should be slow enough to appreciate each design element\n" +
		"- Fabric should not stretch, warp, or behave unnaturally\n" +
		"- Final drape position should show the saree's best features",
}

// videoVariationModifiers is appended per variation attempt, one entry per
// generated variation.
var videoVariationModifiers = []string{
	"Use slow, gentle camera movement. Dreamy and meditative pacing.",
	"Allow slightly more movement in the fabric. Keep the camera steady and the painted details crisp.",
}

// negativePromptTerms protect the product and brand aesthetic in Veo output.
var negativePromptTerms = []string{
	"warped fabric", "distorted patterns", "melting textures", "extra limbs",
	"repainted motifs", "changed colors", "blurred artwork", "text artifacts",
	"neon colors", "fast cuts", "glitch effects", "harsh strobe lighting",
	"revealing poses", "disrespectful draping",
}

// NegativePrompt joins the protection terms into a single Veo negative prompt.
func NegativePrompt() string {
	return strings.Join(negativePromptTerms, ", ")
}

// SceneDef is one scene of a multi-scene ad structure.
type SceneDef struct {
	SceneType      string
	MotionModifier string
	Duration       int
}

// adStructures maps preset names to ordered scene lists.
var adStructures = map[string][]SceneDef{
	"30_second_reel": {
		{SceneType: "reveal", MotionModifier: "Opening shot, slow and inviting.", Duration: 8},
		{SceneType: "close-up", MotionModifier: "Hold on the brushwork, let it breathe.", Duration: 8},
		{SceneType: "fabric-flow", MotionModifier: "Build gentle movement into the fabric.", Duration: 8},
		{SceneType: "lifestyle", MotionModifier: "Close on the saree worn, warm and aspirational.", Duration: 8},
	},
	"15_second_reel": {
		{SceneType: "reveal", MotionModifier: "Opening shot, slow and inviting.", Duration: 8},
		{SceneType: "fabric-flow", MotionModifier: "Close with gentle fabric movement.", Duration: 8},
	},
}

// adPresetSeconds holds each preset's nominal total length, used when a
// request names a duration instead of a preset.
var adPresetSeconds = map[string]int{
	"15_second_reel": 15,
	"30_second_reel": 30,
}

// AdStructure resolves a preset name to its scene list, falling back to the
// 30-second structure for unknown names.
func AdStructure(name string) []SceneDef {
	if scenes, ok := adStructures[name]; ok {
		return scenes
	}
	return adStructures["30_second_reel"]
}

// PresetForDuration picks the preset whose nominal length is nearest to the
// requested seconds, breaking ties toward the longer preset.
func PresetForDuration(seconds int) string {
	best := ""
	bestTotal := 0
	bestDiff := math.MaxInt
	for name, total := range adPresetSeconds {
		diff := seconds - total
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff || (diff == bestDiff && total > bestTotal) {
			best, bestTotal, bestDiff = name, total, diff
		}
	}
	return best
}

// InferVideoType picks a video type for a brief: the analyzer's
// recommendation if present, otherwise a mapping from the layout type.
func InferVideoType(brief *StyleBrief) string {
	if brief.VideoAnalysis != nil && brief.VideoAnalysis.RecommendedVideoType != "" {
		return brief.VideoAnalysis.RecommendedVideoType
	}
	switch brief.LayoutType {
	case "close-up":
		return "close-up"
	case "on-model", "lifestyle":
		return "lifestyle"
	case "flat-lay":
		return "reveal"
	default:
		return "fabric-flow"
	}
}

// BuildVideoPrompt assembles the full Veo prompt for a brief. An empty
// videoType is inferred from the brief.
func BuildVideoPrompt(brief *StyleBrief, videoType string) string {
	if videoType == "" {
		videoType = InferVideoType(brief)
	}

	baseMotion, ok := videoTypePrompts[videoType]
	if !ok {
		videoType = "fabric-flow"
		baseMotion = videoTypePrompts[videoType]
	}
	constraints := videoTypeMotionConstraints[videoType]

	cameraMotion := "slow-pan"
	pacing := "slow-dreamy"
	motionType := "fabric-flow"
	motionElements := "gentle fabric movement, light playing across the surface"
	audioMood := "ambient-nature"
	duration := "8"
	adaptationNotes := "Showcase the hand-painted details with subtle, elegant motion."

	if va := brief.VideoAnalysis; va != nil {
		if va.CameraMotion != "" {
			cameraMotion = va.CameraMotion
		}
		if va.Pacing != "" {
			pacing = va.Pacing
		}
		if va.MotionType != "" {
			motionType = va.MotionType
		}
		if va.MotionElements != "" {
			motionElements = va.MotionElements
		}
		if va.AudioMood != "" {
			audioMood = va.AudioMood
		}
		if va.RecommendedDuration > 0 {
			duration = fmt.Sprintf("%d", va.RecommendedDuration)
		}
		if va.VideoAdaptationNotes != "" {
			adaptationNotes = va.VideoAdaptationNotes
		}
	}

	palette := "warm"
	temperature := "warm"
	if brief.ColorMood.PaletteName != "" {
		palette = brief.ColorMood.PaletteName
	}
	if brief.ColorMood.Temperature != "" {
		temperature = brief.ColorMood.Temperature
	}

	background := brief.Background.SuggestedBgForSaree
	if background == "" {
		background = "neutral warm background"
	}

	lighting := brief.Lighting
	if lighting == "" {
		lighting = "natural-soft"
	}

	vibe := "elegant, luxurious, handcrafted"
	if len(brief.VibeWords) > 0 {
		vibe = strings.Join(brief.VibeWords, ", ")
	}

	prompt := fmt.Sprintf(veoPromptTemplate,
		baseMotion, constraints,
		palette, temperature,
		background, lighting,
		cameraMotion, motionType, motionElements,
		pacing, audioMood, vibe, duration,
		adaptationNotes,
	)
	return strings.TrimSpace(prompt)
}
