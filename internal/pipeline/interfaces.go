package pipeline

import "context"

// Downloader fetches an inspiration post's media and caption.
type Downloader interface {
	DownloadPost(ctx context.Context, sourceURL string) (*DownloadedReference, error)
}

// Analyzer derives a style brief from a reference image and caption.
// When forVideo is set the brief must include the video analysis fields.
type Analyzer interface {
	AnalyzeReference(ctx context.Context, referenceImageURL, referenceCaption string, forVideo bool) (*StyleBrief, error)
}

// Styler renders product photos in the style of the reference.
type Styler interface {
	GenerateVariants(ctx context.Context, sareeImages []string, referenceImageURL string, brief *StyleBrief, overlayText string, aspectRatio string) ([]StyledVariant, error)
}

// Captioner writes the caption package for a styled preview.
type Captioner interface {
	GenerateCaption(ctx context.Context, styledImageURL string, brief *StyleBrief, product ProductInfo, isReel bool) (*CaptionPackage, error)
}

// Publisher pushes approved media to Instagram.
type Publisher interface {
	PostSingleImage(ctx context.Context, imageURL, caption, altText, idempotencyKey string) (*PublishResult, error)
	PostCarousel(ctx context.Context, imageURLs []string, caption, altText, idempotencyKey string) (*PublishResult, error)
	PostReel(ctx context.Context, videoURL, caption string, thumbOffsetMs int, idempotencyKey string) (*PublishResult, error)
	RefreshPageToken(ctx context.Context) (expiresInSeconds int64, err error)
}

// Storage persists generated media and returns public URLs.
type Storage interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// Reviewer delivers generated variants and progress messages to the
// originating chat. Implemented by the Telegram sender.
type Reviewer interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendReview(ctx context.Context, chatID int64, postID uint, imageURLs []string, caption, hashtags string) error
	SendVideoReview(ctx context.Context, chatID int64, postID uint, videoURLs []string, startFrameURL, caption, hashtags string) error
}

// VideoGenerator produces short clips from a styled start frame.
type VideoGenerator interface {
	GenerateFromImage(ctx context.Context, startFramePath string, prompt string, variations int) ([]GeneratedClip, error)
	ExtendVideo(ctx context.Context, videoPath string, prompt string) (*GeneratedClip, error)
}

// MediaTools wraps the ffmpeg shell-outs the video pipeline needs.
type MediaTools interface {
	ExtractFirstFrame(ctx context.Context, videoPath string) ([]byte, error)
	StitchScenes(ctx context.Context, scenePaths []string, transition string, transitionDuration float64) (string, error)
	CompressVideo(ctx context.Context, videoPath string, maxSizeMB int) (string, error)
}
