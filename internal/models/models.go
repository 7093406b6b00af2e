// Package models defines the persistent entities for the content pipeline
// and the status state machines that govern them.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product is a catalog item (a saree) that posts are generated for.
type Product struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ProductCode string  `gorm:"size:20;uniqueIndex;not null" json:"product_code"`
	ProductName *string `gorm:"size:200" json:"product_name,omitempty"`
	ProductType *string `gorm:"size:50" json:"product_type,omitempty"`
	Fabric      *string `gorm:"size:100" json:"fabric,omitempty"`
	Colors      *string `gorm:"type:text" json:"colors,omitempty"`
	Motif       *string `gorm:"size:200" json:"motif,omitempty"`
	ArtisanName *string `gorm:"size:100" json:"artisan_name,omitempty"`
	DaysToMake  *int    `json:"days_to_make,omitempty"`
	Technique   *string `gorm:"size:200" json:"technique,omitempty"`
	Price       *float64 `gorm:"type:decimal(10,2)" json:"price,omitempty"`
	ShopifyURL  *string `gorm:"size:500" json:"shopify_url,omitempty"`
	Status      string  `gorm:"size:20;not null;default:active" json:"status"`
	CreatedAt   time.Time `json:"created_at"`

	Photos []ProductPhoto `gorm:"constraint:OnDelete:CASCADE" json:"photos,omitempty"`
	Posts  []Post         `json:"posts,omitempty"`
}

// ProductPhoto is a stored catalog photo for a product.
type ProductPhoto struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProductID  uint      `gorm:"not null;index" json:"product_id"`
	PhotoURL   string    `gorm:"size:500;not null" json:"photo_url"`
	PhotoType  *string   `gorm:"size:30" json:"photo_type,omitempty"`
	IsPrimary  bool      `gorm:"not null;default:false" json:"is_primary"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// Post is the central entity: one attempted Instagram post, from inspiration
// link through styling, review, and publication.
type Post struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	ProductID            *uint          `gorm:"index" json:"product_id,omitempty"`
	CreatedBy            *string        `gorm:"size:50" json:"created_by,omitempty"`
	ReferenceURL         *string        `gorm:"size:500" json:"reference_url,omitempty"`
	ReferenceImage       *string        `gorm:"size:500" json:"reference_image,omitempty"`
	SourceCaption        *string        `gorm:"type:text" json:"source_caption,omitempty"`
	SourceHashtags       *string        `gorm:"type:text" json:"source_hashtags,omitempty"`
	SourceImageURLs      datatypes.JSON `json:"source_image_urls,omitempty"`
	StyleBrief           datatypes.JSON `json:"style_brief,omitempty"`
	StyledImage          *string        `gorm:"size:500" json:"styled_image,omitempty"`
	Caption              *string        `gorm:"type:text" json:"caption,omitempty"`
	Hashtags             *string        `gorm:"type:text" json:"hashtags,omitempty"`
	AltText              *string        `gorm:"type:text" json:"alt_text,omitempty"`
	InstagramPostID      *string        `gorm:"size:100" json:"instagram_post_id,omitempty"`
	InstagramURL         *string        `gorm:"size:500" json:"instagram_url,omitempty"`
	PostedAt             *time.Time     `json:"posted_at,omitempty"`
	PostedBy             *string        `gorm:"size:50" json:"posted_by,omitempty"`
	Status               string         `gorm:"size:20;not null;default:draft;index:ix_posts_status_created_at,priority:1" json:"status"`
	MediaType            string         `gorm:"size:20;not null;default:single" json:"media_type"`
	InputPhotoURLs       datatypes.JSON `json:"input_photo_urls,omitempty"`
	TelegramPhotoFileIDs datatypes.JSON `json:"telegram_photo_file_ids,omitempty"`
	SelectedVariantIndex *int           `json:"selected_variant_index,omitempty"`
	PublishIdempotencyKey *string       `gorm:"size:120" json:"publish_idempotency_key,omitempty"`
	ErrorCode            *string        `gorm:"size:80" json:"error_code,omitempty"`
	ErrorMessage         *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt            time.Time      `gorm:"index:ix_posts_status_created_at,priority:2" json:"created_at"`

	// Reel fields. DetectedMediaType records whether the inspiration link
	// pointed at a static image post or a reel.
	DetectedMediaType *string        `gorm:"size:10" json:"detected_media_type,omitempty"`
	VideoURL          *string        `gorm:"size:500" json:"video_url,omitempty"`
	VideoStyleBrief   datatypes.JSON `json:"video_style_brief,omitempty"`
	VideoType         *string        `gorm:"size:20" json:"video_type,omitempty"`
	StartFrameURL     *string        `gorm:"size:500" json:"start_frame_url,omitempty"`
	VideoDuration     *int           `json:"video_duration,omitempty"`
	ThumbOffsetMs     *int           `json:"thumb_offset_ms,omitempty"`

	Variants  []PostVariant     `gorm:"constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	Sessions  []TelegramSession `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	JobRuns   []JobRun          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	VideoJobs []VideoJob        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// PostVariant is one styled rendering of a post, offered for review.
type PostVariant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"not null;index" json:"post_id"`
	VariantIndex int       `gorm:"not null" json:"variant_index"`
	PreviewURL   string    `gorm:"size:500;not null" json:"preview_url"`
	SSIMScore    float64   `gorm:"type:decimal(5,4);not null" json:"ssim_score"`
	IsValid      bool      `gorm:"not null;default:true" json:"is_valid"`
	CreatedAt    time.Time `json:"created_at"`

	Items []PostVariantItem `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// PostVariantItem is one image within a carousel variant, ordered by position.
type PostVariantItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	VariantID uint   `gorm:"not null;index" json:"variant_id"`
	Position  int    `gorm:"not null" json:"position"`
	ImageURL  string `gorm:"size:500;not null" json:"image_url"`
}

// TelegramSession tracks where each operator is in the conversation flow.
type TelegramSession struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TelegramUserID string         `gorm:"size:50;not null;index:ix_telegram_sessions_user_state,priority:1" json:"telegram_user_id"`
	ChatID         string         `gorm:"size:50;not null" json:"chat_id"`
	PostID         *uint          `gorm:"index" json:"post_id,omitempty"`
	State          string         `gorm:"size:50;not null;default:idle;index:ix_telegram_sessions_user_state,priority:2" json:"state"`
	ContextJSON    datatypes.JSON `json:"context_json,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// JobRun is the audit ledger: one row per pipeline stage execution.
type JobRun struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PostID       uint       `gorm:"not null;index" json:"post_id"`
	Stage        string     `gorm:"size:30;not null" json:"stage"`
	Attempt      int        `gorm:"not null;default:1" json:"attempt"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	ErrorCode    *string    `gorm:"size:80" json:"error_code,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time  `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// VideoJob tracks one Veo generation attempt for a post.
type VideoJob struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	PostID                uint       `gorm:"not null;index" json:"post_id"`
	VeoOperationID        *string    `gorm:"size:200" json:"veo_operation_id,omitempty"`
	Status                string     `gorm:"size:20;not null;default:pending" json:"status"`
	VariationNumber       int        `gorm:"not null" json:"variation_number"`
	VideoURL              *string    `gorm:"size:500" json:"video_url,omitempty"`
	GenerationTimeSeconds *int       `json:"generation_time_seconds,omitempty"`
	PromptUsed            *string    `gorm:"type:text" json:"prompt_used,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// All returns every entity registered for migration, in dependency order.
func All() []any {
	return []any{
		&Product{},
		&ProductPhoto{},
		&Post{},
		&PostVariant{},
		&PostVariantItem{},
		&TelegramSession{},
		&JobRun{},
		&VideoJob{},
	}
}
