package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/jobs"
	"github.com/naman7474/vak-social-media/internal/models"
)

// Orchestrator drives posts through the generation, review, and publish
// stages, recording every stage attempt in the JobRun ledger.
type Orchestrator struct {
	DB         *gorm.DB
	Settings   *config.Settings
	Downloader Downloader
	Analyzer   Analyzer
	Styler     Styler
	Captioner  Captioner
	Publisher  Publisher
	Storage    Storage
	Reviewer   Reviewer
	Validator  *SareeValidator
	Veo        VideoGenerator
	Media      MediaTools
}

// loadPost fetches a post with its product (and the product's photos).
func (o *Orchestrator) loadPost(postID uint) (*models.Post, *models.Product, error) {
	var post models.Post
	if err := o.DB.First(&post, postID).Error; err != nil {
		return nil, nil, err
	}
	var product *models.Product
	if post.ProductID != nil {
		var p models.Product
		if err := o.DB.Preload("Photos").First(&p, *post.ProductID).Error; err == nil {
			product = &p
		}
	}
	return &post, product, nil
}

// cancelled reloads the post status; used at stage boundaries so a user
// cancellation takes effect mid-pipeline.
func (o *Orchestrator) cancelled(postID uint) bool {
	var status string
	if err := o.DB.Model(&models.Post{}).Where("id = ?", postID).
		Pluck("status", &status).Error; err != nil {
		return false
	}
	return status == models.PostStatusCancelled
}

// setStatus routes a post status change through the transition gate and
// persists it. Illegal transitions are programmer errors and are returned.
func (o *Orchestrator) setStatus(post *models.Post, target string) error {
	if err := post.SetStatus(target); err != nil {
		return err
	}
	return o.DB.Model(post).Update("status", post.Status).Error
}

// failPost records a pipeline failure on the post and tells the operator.
// The status write goes through the transition gate like every other one; a
// post already failed only gets its error detail refreshed.
func (o *Orchestrator) failPost(ctx context.Context, post *models.Post, chatID int64, err error) {
	code := ErrorCode(err)
	msg := err.Error()
	if post.Status != models.PostStatusFailed {
		if stErr := post.SetStatus(models.PostStatusFailed); stErr != nil {
			log.Error().Err(stErr).Uint("post_id", post.ID).Msg("Refusing failure status write")
			return
		}
	}
	post.ErrorCode = &code
	post.ErrorMessage = &msg
	if dbErr := o.DB.Model(post).Updates(map[string]any{
		"status":        post.Status,
		"error_code":    code,
		"error_message": msg,
	}).Error; dbErr != nil {
		log.Error().Err(dbErr).Uint("post_id", post.ID).Msg("Failed to record post failure")
	}

	if sendErr := o.Reviewer.SendText(ctx, chatID, UserMessage(err)); sendErr != nil {
		log.Error().Err(sendErr).Int64("chat_id", chatID).Msg("Failed to notify chat of failure")
	}

	if _, typed := AsPipelineError(err); typed {
		log.Warn().Err(err).Uint("post_id", post.ID).Str("error_code", code).Msg("Pipeline failed")
	} else {
		log.Error().Err(err).Uint("post_id", post.ID).Msg("Pipeline failed with unhandled error")
	}
}

// RunGenerationPipeline runs the image path end to end:
// download, analyze, style, caption, review.
func (o *Orchestrator) RunGenerationPipeline(ctx context.Context, postID uint, chatID int64) error {
	post, product, err := o.loadPost(postID)
	if err != nil {
		log.Error().Err(err).Uint("post_id", postID).Msg("Post not found")
		return err
	}
	if post.Status == models.PostStatusCancelled {
		return nil
	}

	if err := o.setStatus(post, models.PostStatusProcessing); err != nil {
		return err
	}
	o.DB.Model(post).Updates(map[string]any{"error_code": nil, "error_message": nil})

	var brief *StyleBrief

	err = RunStage(o.DB, postID, models.StageDownload, func() error {
		reference, err := o.Downloader.DownloadPost(ctx, deref(post.ReferenceURL))
		if err != nil {
			return err
		}
		if len(reference.ImageURLs) == 0 {
			return UnsupportedMediaError(fmt.Errorf("no images in reference post"))
		}
		imageURLs, _ := json.Marshal(reference.ImageURLs)
		post.ReferenceImage = &reference.ImageURLs[0]
		post.SourceCaption = &reference.Caption
		post.SourceHashtags = &reference.Hashtags
		post.SourceImageURLs = datatypes.JSON(imageURLs)
		post.DetectedMediaType = &reference.MediaType
		return o.DB.Model(post).Updates(map[string]any{
			"reference_image":     post.ReferenceImage,
			"source_caption":      post.SourceCaption,
			"source_hashtags":     post.SourceHashtags,
			"source_image_urls":   post.SourceImageURLs,
			"detected_media_type": post.DetectedMediaType,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	err = RunStage(o.DB, postID, models.StageAnalyze, func() error {
		var err error
		brief, err = o.Analyzer.AnalyzeReference(ctx, deref(post.ReferenceImage), deref(post.SourceCaption), false)
		if err != nil {
			return err
		}
		briefJSON, err := json.Marshal(brief)
		if err != nil {
			return err
		}
		post.StyleBrief = datatypes.JSON(briefJSON)
		return o.DB.Model(post).Update("style_brief", post.StyleBrief).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	err = RunStage(o.DB, postID, models.StageStyle, func() error {
		return o.runStyleStage(ctx, post, product, brief, "")
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	err = RunStage(o.DB, postID, models.StageCaption, func() error {
		pkg, err := o.Captioner.GenerateCaption(ctx, deref(post.StyledImage), brief, BuildProductInfo(product), false)
		if err != nil {
			return err
		}
		if pkg.Kind != CaptionKindImage {
			return CaptionError(fmt.Errorf("caption writer returned %q package for an image post", pkg.Kind))
		}
		post.Caption = &pkg.Caption
		post.Hashtags = &pkg.Hashtags
		post.AltText = &pkg.AltText
		if err := post.SetStatus(models.PostStatusReviewReady); err != nil {
			return err
		}
		return o.DB.Model(post).Updates(map[string]any{
			"caption":  post.Caption,
			"hashtags": post.Hashtags,
			"alt_text": post.AltText,
			"status":   post.Status,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	err = RunStage(o.DB, postID, models.StageReview, func() error {
		var variants []models.PostVariant
		if err := o.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).Where("post_id = ? AND is_valid = ?", postID, true).
			Order("variant_index ASC").Limit(3).Find(&variants).Error; err != nil {
			return err
		}
		var imageURLs []string
		for _, v := range variants {
			if len(v.Items) > 0 {
				for _, item := range v.Items {
					imageURLs = append(imageURLs, item.ImageURL)
				}
			} else {
				imageURLs = append(imageURLs, v.PreviewURL)
			}
		}
		return o.Reviewer.SendReview(ctx, chatID, postID, imageURLs, deref(post.Caption), deref(post.Hashtags))
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	log.Info().Uint("post_id", postID).Msg("Generation pipeline complete")
	return nil
}

// runStyleStage resolves sources, generates variants, scores them against the
// original product photo, and replaces all prior variants in one transaction.
func (o *Orchestrator) runStyleStage(ctx context.Context, post *models.Post, product *models.Product, brief *StyleBrief, aspectRatio string) error {
	sources := ResolveSareeSources(post, product)
	if len(sources) == 0 {
		return StylingError(fmt.Errorf("no saree photo found for this post"))
	}

	// More than one reference image means the inspiration was a carousel.
	var refImages []string
	if len(post.SourceImageURLs) > 0 {
		_ = json.Unmarshal(post.SourceImageURLs, &refImages)
	}
	mediaType := models.MediaTypeSingle
	if len(distinct(refImages)) > 1 {
		mediaType = models.MediaTypeCarousel
	}

	variants, err := o.Styler.GenerateVariants(ctx, sources, deref(post.ReferenceImage), brief, "", aspectRatio)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return StylingError(fmt.Errorf("styler returned no variants"))
	}

	originalBytes, err := fetchBytes(ctx, sources[0])
	if err != nil {
		return StylingError(fmt.Errorf("fetching original product photo: %w", err))
	}

	for i := range variants {
		generatedBytes, err := fetchBytes(ctx, variants[i].PreviewURL)
		if err != nil {
			return StylingError(fmt.Errorf("fetching generated preview: %w", err))
		}
		ok, score, err := o.Validator.VerifyPreserved(originalBytes, generatedBytes)
		if err != nil {
			return StylingError(err)
		}
		variants[i].SSIMScore = score
		if !ok {
			log.Warn().Uint("post_id", post.ID).Int("variant", variants[i].VariantIndex).
				Float64("score", score).Msg("Variant failed saree preservation check")
		}
		// Low scores are warnings unless enforcement is switched on.
		variants[i].IsValid = ok || !o.Settings.PreservationEnforce
	}

	anyValid := false
	for _, v := range variants {
		if v.IsValid {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return SareePreservationError(fmt.Errorf("all %d variants scored below %.2f", len(variants), o.Validator.Threshold))
	}

	// Full replace of prior variants, atomically with the new inserts.
	return o.DB.Transaction(func(tx *gorm.DB) error {
		var old []models.PostVariant
		if err := tx.Where("post_id = ?", post.ID).Find(&old).Error; err != nil {
			return err
		}
		for _, v := range old {
			if err := tx.Where("variant_id = ?", v.ID).Delete(&models.PostVariantItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostVariant{}).Error; err != nil {
			return err
		}

		var firstValidPreview string
		for _, v := range variants {
			record := models.PostVariant{
				PostID:       post.ID,
				VariantIndex: v.VariantIndex,
				PreviewURL:   v.PreviewURL,
				SSIMScore:    v.SSIMScore,
				IsValid:      v.IsValid,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			for idx, itemURL := range v.ItemURLs {
				item := models.PostVariantItem{
					VariantID: record.ID,
					Position:  idx + 1,
					ImageURL:  itemURL,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			}
			if v.IsValid && firstValidPreview == "" {
				firstValidPreview = v.PreviewURL
			}
		}

		post.StyledImage = &firstValidPreview
		post.MediaType = mediaType
		return tx.Model(post).Updates(map[string]any{
			"styled_image": post.StyledImage,
			"media_type":   post.MediaType,
		}).Error
	})
}

// RunCaptionRewrite regenerates the caption package with a user instruction
// folded into the brief's adaptation notes.
func (o *Orchestrator) RunCaptionRewrite(ctx context.Context, postID uint, chatID int64, instruction string) error {
	post, product, err := o.loadPost(postID)
	if err != nil {
		return err
	}
	if len(post.StyleBrief) == 0 || post.StyledImage == nil {
		return nil
	}

	var brief StyleBrief
	if err := json.Unmarshal(post.StyleBrief, &brief); err != nil {
		return err
	}
	brief.AdaptationNotes = "Rewrite instruction from user: " + instruction

	isReel := post.MediaType == models.MediaTypeReel

	err = RunStage(o.DB, postID, models.StageCaption, func() error {
		pkg, err := o.Captioner.GenerateCaption(ctx, *post.StyledImage, &brief, BuildProductInfo(product), isReel)
		if err != nil {
			return err
		}
		post.Caption = &pkg.Caption
		post.Hashtags = &pkg.Hashtags
		post.AltText = &pkg.AltText
		updates := map[string]any{
			"caption":  post.Caption,
			"hashtags": post.Hashtags,
			"alt_text": post.AltText,
		}
		if post.Status != models.PostStatusReviewReady {
			if err := post.SetStatus(models.PostStatusReviewReady); err != nil {
				return err
			}
			updates["status"] = post.Status
		}
		return o.DB.Model(post).Updates(updates).Error
	})
	if err != nil {
		if sendErr := o.Reviewer.SendText(ctx, chatID, UserMessage(err)); sendErr != nil {
			log.Error().Err(sendErr).Int64("chat_id", chatID).Msg("Failed to notify chat")
		}
		return err
	}

	return o.Reviewer.SendText(ctx, chatID, "Updated caption is ready. Reply 'approve' or 'post now'.")
}

// RunPublish posts the selected variant to Instagram. Already-posted posts
// short-circuit with the existing permalink; the idempotency key survives
// retries so a second attempt reuses it.
func (o *Orchestrator) RunPublish(ctx context.Context, postID uint, chatID int64, postedBy string) error {
	post, _, err := o.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosted {
		return o.Reviewer.SendText(ctx, chatID, "Already posted: "+deref(post.InstagramURL))
	}

	selectedIndex := 1
	if post.SelectedVariantIndex != nil {
		selectedIndex = *post.SelectedVariantIndex
	}
	var variant models.PostVariant
	if err := o.DB.Where("post_id = ? AND variant_index = ?", postID, selectedIndex).
		First(&variant).Error; err != nil {
		return o.Reviewer.SendText(ctx, chatID, "Please select a variant first (1, 2, or 3).")
	}

	// A retry after a failed publish walks back through the gate rather
	// than jumping straight to approved.
	if post.Status == models.PostStatusFailed {
		if err := o.setStatus(post, models.PostStatusProcessing); err != nil {
			return err
		}
	}
	if post.Status == models.PostStatusProcessing {
		if err := o.setStatus(post, models.PostStatusReviewReady); err != nil {
			return err
		}
	}
	if post.Status != models.PostStatusApproved {
		if err := o.setStatus(post, models.PostStatusApproved); err != nil {
			return err
		}
	}
	if post.PublishIdempotencyKey == nil {
		key := fmt.Sprintf("post:%d:variant:%d:%s", post.ID, variant.VariantIndex, jobs.ShortToken())
		post.PublishIdempotencyKey = &key
		if err := o.DB.Model(post).Update("publish_idempotency_key", key).Error; err != nil {
			return err
		}
	}

	err = RunStage(o.DB, postID, models.StagePost, func() error {
		fullCaption := deref(post.Caption) + "\n\n" + deref(post.Hashtags)

		var result *PublishResult
		var err error
		switch post.MediaType {
		case models.MediaTypeCarousel:
			var items []models.PostVariantItem
			if err := o.DB.Where("variant_id = ?", variant.ID).
				Order("position ASC").Find(&items).Error; err != nil {
				return err
			}
			urls := make([]string, len(items))
			for i, item := range items {
				urls[i] = item.ImageURL
			}
			result, err = o.Publisher.PostCarousel(ctx, urls, fullCaption, deref(post.AltText), *post.PublishIdempotencyKey)
		case models.MediaTypeReel:
			thumbOffset := 0
			if post.ThumbOffsetMs != nil {
				thumbOffset = *post.ThumbOffsetMs
			}
			videoURL, prepErr := o.prepareReelForPublish(ctx, post)
			if prepErr != nil {
				return prepErr
			}
			result, err = o.Publisher.PostReel(ctx, videoURL, fullCaption, thumbOffset, *post.PublishIdempotencyKey)
		default:
			result, err = o.Publisher.PostSingleImage(ctx, variant.PreviewURL, fullCaption, deref(post.AltText), *post.PublishIdempotencyKey)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		post.InstagramPostID = &result.MediaID
		post.InstagramURL = &result.Permalink
		post.PostedAt = &now
		post.PostedBy = &postedBy
		if err := post.SetStatus(models.PostStatusPosted); err != nil {
			return err
		}
		return o.DB.Model(post).Updates(map[string]any{
			"instagram_post_id": post.InstagramPostID,
			"instagram_url":     post.InstagramURL,
			"posted_at":         post.PostedAt,
			"posted_by":         post.PostedBy,
			"status":            post.Status,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	return o.Reviewer.SendText(ctx, chatID, "Posted successfully: "+deref(post.InstagramURL))
}

// prepareReelForPublish runs the compression pre-flight: the clip is fetched,
// re-encoded under the size ceiling, and re-uploaded. A failed compression
// falls back to the original URL rather than blocking the publish.
func (o *Orchestrator) prepareReelForPublish(ctx context.Context, post *models.Post) (string, error) {
	if post.VideoURL == nil || *post.VideoURL == "" {
		return "", PublishError(fmt.Errorf("post %d has no video to publish", post.ID))
	}

	localPath, err := downloadToTemp(ctx, *post.VideoURL, "publish-*.mp4")
	if err != nil {
		log.Warn().Err(err).Uint("post_id", post.ID).Msg("Could not fetch reel for compression, publishing as-is")
		return *post.VideoURL, nil
	}
	defer os.Remove(localPath)

	compressed, err := o.Media.CompressVideo(ctx, localPath, o.Settings.MaxVideoSizeMB)
	if err != nil || compressed == localPath {
		return *post.VideoURL, nil
	}
	defer os.Remove(compressed)

	data, err := os.ReadFile(compressed)
	if err != nil {
		return *post.VideoURL, nil
	}
	key := fmt.Sprintf("videos/post-%d/publish-%s.mp4", post.ID, jobs.ShortToken())
	url, err := o.Storage.UploadBytes(ctx, key, data, "video/mp4")
	if err != nil {
		log.Warn().Err(err).Uint("post_id", post.ID).Msg("Could not upload compressed reel, publishing original")
		return *post.VideoURL, nil
	}
	return url, nil
}

// PurgeOldReferenceImages deletes stored reference images for posts older
// than the retention window and clears the column. Returns the purge count.
func (o *Orchestrator) PurgeOldReferenceImages(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var posts []models.Post
	if err := o.DB.Where("reference_image IS NOT NULL AND created_at <= ?", cutoff).
		Find(&posts).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for i := range posts {
		if posts[i].ReferenceImage == nil {
			continue
		}
		if err := o.Storage.DeleteByURL(ctx, *posts[i].ReferenceImage); err != nil {
			log.Warn().Err(err).Uint("post_id", posts[i].ID).Msg("Failed to delete reference image")
			continue
		}
		if err := o.DB.Model(&posts[i]).Update("reference_image", nil).Error; err != nil {
			return deleted, err
		}
		deleted++
	}
	log.Info().Int("deleted", deleted).Int("retention_days", days).Msg("Reference image purge complete")
	return deleted, nil
}

// NotifyTokenExpiry warns the founder chat that the Meta page token needs a
// refresh.
func (o *Orchestrator) NotifyTokenExpiry(ctx context.Context, chatID int64, expiryText string) error {
	return o.Reviewer.SendText(ctx, chatID,
		fmt.Sprintf("Meta page token is nearing expiry (%s). Refresh it this week.", expiryText))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func distinct(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var out []string
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
