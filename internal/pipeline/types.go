// Package pipeline contains the content generation orchestrators, the stage
// ledger, and the external collaborator clients they drive.
package pipeline

// Composition describes how the product sits inside the frame.
type Composition struct {
	ProductPlacement string `json:"product_placement"`
	Whitespace       string `json:"whitespace"`
	TextArea         string `json:"text_area"`
	AspectRatio      string `json:"aspect_ratio"`
}

// ColorMood is the palette extracted from the reference post.
type ColorMood struct {
	Temperature    string   `json:"temperature"`
	DominantColors []string `json:"dominant_colors"`
	PaletteName    string   `json:"palette_name"`
}

// BackgroundSpec describes the reference background and how to adapt it.
type BackgroundSpec struct {
	Type                string `json:"type"`
	Description         string `json:"description"`
	SuggestedBgForSaree string `json:"suggested_bg_for_saree"`
}

// TextOverlaySpec describes any text rendered into the reference image.
type TextOverlaySpec struct {
	HasText      bool   `json:"has_text"`
	TextStyle    string `json:"text_style"`
	TextPosition string `json:"text_position"`
	TextPurpose  string `json:"text_purpose"`
}

// VideoAnalysis is the reel-specific portion of a style brief: how the
// reference moves and what kind of clip to generate.
type VideoAnalysis struct {
	CameraMotion         string `json:"camera_motion,omitempty"`
	Pacing               string `json:"pacing,omitempty"`
	MotionType           string `json:"motion_type,omitempty"`
	MotionElements       string `json:"motion_elements,omitempty"`
	AudioMood            string `json:"audio_mood,omitempty"`
	RecommendedVideoType string `json:"recommended_video_type,omitempty"`
	RecommendedDuration  int    `json:"recommended_duration,omitempty"`
	VideoAdaptationNotes string `json:"video_adaptation_notes,omitempty"`
}

// StyleBrief is the structured styling document derived from a reference
// post. It is persisted verbatim on the Post and fed to the styler, the
// caption writer, and the prompt builder.
type StyleBrief struct {
	LayoutType      string          `json:"layout_type"`
	Composition     Composition     `json:"composition"`
	ColorMood       ColorMood       `json:"color_mood"`
	Background      BackgroundSpec  `json:"background"`
	Lighting        string          `json:"lighting"`
	TextOverlay     TextOverlaySpec `json:"text_overlay"`
	ContentFormat   string          `json:"content_format"`
	VibeWords       []string        `json:"vibe_words"`
	AdaptationNotes string          `json:"adaptation_notes"`

	// VideoAnalysis is only present when the brief was requested for a reel.
	VideoAnalysis *VideoAnalysis `json:"video_analysis,omitempty"`
}

// CaptionKind tags which shape of caption package was produced. The set is
// closed: consumers switch on it rather than sniffing optional fields.
type CaptionKind string

const (
	CaptionKindImage CaptionKind = "image"
	CaptionKindReel  CaptionKind = "reel"
)

// CaptionPackage is the caption writer's output. The cover frame fields are
// only populated when Kind is CaptionKindReel.
type CaptionPackage struct {
	Kind                  CaptionKind `json:"kind"`
	Caption               string      `json:"caption"`
	Hashtags              string      `json:"hashtags"`
	AltText               string      `json:"alt_text"`
	OverlayText           string      `json:"overlay_text,omitempty"`
	CoverFrameDescription string      `json:"cover_frame_description,omitempty"`
	ThumbOffsetMs         int         `json:"thumb_offset_ms,omitempty"`
}

// StyledVariant is one generated rendering: a preview plus, for carousels,
// one image per reference position.
type StyledVariant struct {
	VariantIndex int      `json:"variant_index"`
	PreviewURL   string   `json:"preview_url"`
	ItemURLs     []string `json:"item_urls,omitempty"`
	SSIMScore    float64  `json:"ssim_score"`
	IsValid      bool     `json:"is_valid"`
}

// DownloadedReference is what the reference downloader returns for an
// inspiration link.
type DownloadedReference struct {
	SourceURL string
	ImageURLs []string
	VideoURL  string
	Caption   string
	Hashtags  string
	MediaType string
}

// ProductInfo is flattened product metadata handed to the caption writer.
type ProductInfo map[string]string

// PublishResult is what the Instagram publisher returns on success.
type PublishResult struct {
	MediaID   string
	Permalink string
}

// GeneratedClip is one Veo output: a local file plus metadata about the
// attempt that produced it.
type GeneratedClip struct {
	LocalPath         string
	VariationNumber   int
	Prompt            string
	GenerationSeconds int
}
