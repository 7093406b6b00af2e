package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/naman7474/vak-social-media/internal/models"
)

// videoVariations is how many Veo clips are generated per request so the
// reviewer has alternatives to pick from.
const videoVariations = 2

// RunVideoGenerationPipeline runs the reel path end to end: download,
// analyze for motion, style a 9:16 start frame, generate clips, caption,
// review.
func (o *Orchestrator) RunVideoGenerationPipeline(ctx context.Context, postID uint, chatID int64) error {
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
			return UnsupportedMediaError(fmt.Errorf("reference reel has no cover image"))
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
		brief, err = o.Analyzer.AnalyzeReference(ctx, deref(post.ReferenceImage), deref(post.SourceCaption), true)
		if err != nil {
			return err
		}
		briefJSON, err := json.Marshal(brief)
		if err != nil {
			return err
		}
		post.StyleBrief = datatypes.JSON(briefJSON)
		post.VideoStyleBrief = datatypes.JSON(briefJSON)
		return o.DB.Model(post).Updates(map[string]any{
			"style_brief":       post.StyleBrief,
			"video_style_brief": post.VideoStyleBrief,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	err = RunStage(o.DB, postID, models.StageStyle, func() error {
		return o.runStyleStage(ctx, post, product, brief, "9:16")
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	if err := o.runVideoGenerateStage(ctx, post, brief, chatID); err != nil {
		return err
	}
	if o.cancelled(postID) {
		return nil
	}

	return o.finishReel(ctx, post, product, brief, chatID)
}

// runVideoGenerateStage generates Veo clips from the styled start frame,
// records a VideoJob per clip, and stores the uploaded clip URLs.
func (o *Orchestrator) runVideoGenerateStage(ctx context.Context, post *models.Post, brief *StyleBrief, chatID int64) error {
	err := RunStage(o.DB, post.ID, models.StageVideoGenerate, func() error {
		videoType := InferVideoType(brief)
		if post.VideoType != nil && *post.VideoType != "" {
			videoType = *post.VideoType
		}
		prompt := BuildVideoPrompt(brief, videoType)

		frameBytes, err := fetchBytes(ctx, deref(post.StyledImage))
		if err != nil {
			return VeoGenerationError(fmt.Errorf("fetching start frame: %w", err))
		}
		framePath := filepath.Join(os.TempDir(), fmt.Sprintf("start-frame-%d-%s.jpg", post.ID, shortHex()))
		if err := os.WriteFile(framePath, frameBytes, 0o644); err != nil {
			return VeoGenerationError(err)
		}
		defer os.Remove(framePath)

		clips, err := o.Veo.GenerateFromImage(ctx, framePath, prompt, videoVariations)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range clips {
				os.Remove(c.LocalPath)
			}
		}()

		startFrameURL, err := o.Storage.UploadBytes(ctx,
			fmt.Sprintf("frames/post-%d/start.jpg", post.ID), frameBytes, "image/jpeg")
		if err != nil {
			return VeoGenerationError(err)
		}

		var uploaded []string
		var rejectedReasons []string
		for _, clip := range clips {
			// First frame of the clip must still show the real saree.
			if firstFrame, err := o.Media.ExtractFirstFrame(ctx, clip.LocalPath); err == nil {
				ok, score, vErr := o.Validator.VerifyPreserved(frameBytes, firstFrame)
				if vErr == nil && !ok {
					log.Warn().Uint("post_id", post.ID).Int("variation", clip.VariationNumber).
						Float64("score", score).Msg("Clip first frame drifted from start frame")
					if o.Settings.PreservationEnforce {
						rejectedReasons = append(rejectedReasons,
							fmt.Sprintf("variation %d scored %.2f", clip.VariationNumber, score))
						continue
					}
				}
			}

			data, err := os.ReadFile(clip.LocalPath)
			if err != nil {
				rejectedReasons = append(rejectedReasons, err.Error())
				continue
			}
			url, err := o.Storage.UploadBytes(ctx,
				fmt.Sprintf("videos/post-%d/clip-%d.mp4", post.ID, clip.VariationNumber),
				data, "video/mp4")
			if err != nil {
				rejectedReasons = append(rejectedReasons, err.Error())
				continue
			}
			uploaded = append(uploaded, url)

			now := time.Now().UTC()
			genSeconds := clip.GenerationSeconds
			promptUsed := clip.Prompt
			job := models.VideoJob{
				PostID:                post.ID,
				Status:                models.VideoJobDone,
				VariationNumber:       clip.VariationNumber,
				VideoURL:              &url,
				GenerationTimeSeconds: &genSeconds,
				PromptUsed:            &promptUsed,
				CompletedAt:           &now,
			}
			if err := o.DB.Create(&job).Error; err != nil {
				return err
			}
		}

		if len(uploaded) == 0 {
			return VideoQualityError(fmt.Errorf("no usable clips: %v", rejectedReasons))
		}

		duration := 8
		post.VideoURL = &uploaded[0]
		post.StartFrameURL = &startFrameURL
		post.VideoType = &videoType
		post.VideoDuration = &duration
		post.MediaType = models.MediaTypeReel
		return o.DB.Model(post).Updates(map[string]any{
			"video_url":       post.VideoURL,
			"start_frame_url": post.StartFrameURL,
			"video_type":      post.VideoType,
			"video_duration":  post.VideoDuration,
			"media_type":      post.MediaType,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
	}
	return err
}

// finishReel runs the caption and review stages shared by every reel path.
func (o *Orchestrator) finishReel(ctx context.Context, post *models.Post, product *models.Product, brief *StyleBrief, chatID int64) error {
	err := RunStage(o.DB, post.ID, models.StageCaption, func() error {
		pkg, err := o.Captioner.GenerateCaption(ctx, deref(post.StyledImage), brief, BuildProductInfo(product), true)
		if err != nil {
			return err
		}
		if pkg.Kind != CaptionKindReel {
			return CaptionError(fmt.Errorf("caption writer returned %q package for a reel", pkg.Kind))
		}
		post.Caption = &pkg.Caption
		post.Hashtags = &pkg.Hashtags
		post.AltText = &pkg.AltText
		post.ThumbOffsetMs = &pkg.ThumbOffsetMs
		updates := map[string]any{
			"caption":         post.Caption,
			"hashtags":        post.Hashtags,
			"alt_text":        post.AltText,
			"thumb_offset_ms": post.ThumbOffsetMs,
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
		o.failPost(ctx, post, chatID, err)
		return err
	}

	err = RunStage(o.DB, post.ID, models.StageReview, func() error {
		var jobs []models.VideoJob
		if err := o.DB.Where("post_id = ? AND status IN ?", post.ID,
			[]string{models.VideoJobDone, models.VideoJobExtended}).
			Order("variation_number ASC").Find(&jobs).Error; err != nil {
			return err
		}
		var videoURLs []string
		for _, j := range jobs {
			if j.VideoURL != nil {
				videoURLs = append(videoURLs, *j.VideoURL)
			}
		}
		if len(videoURLs) == 0 {
			videoURLs = []string{deref(post.VideoURL)}
		}
		return o.Reviewer.SendVideoReview(ctx, chatID, post.ID, videoURLs,
			deref(post.StartFrameURL), deref(post.Caption), deref(post.Hashtags))
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	log.Info().Uint("post_id", post.ID).Msg("Video pipeline complete")
	return nil
}

// RunReelThisConversion turns an already styled image post into a reel,
// reusing the existing start frame instead of re-running download and style.
func (o *Orchestrator) RunReelThisConversion(ctx context.Context, postID uint, chatID int64) error {
	post, product, err := o.loadPost(postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusCancelled {
		return nil
	}
	if post.StyledImage == nil {
		return o.Reviewer.SendText(ctx, chatID, "Generate images first, then ask for a reel.")
	}

	var brief StyleBrief
	if len(post.StyleBrief) > 0 {
		if err := json.Unmarshal(post.StyleBrief, &brief); err != nil {
			return err
		}
	}

	// The image path analyzed without motion fields. Re-analyze for video.
	if brief.VideoAnalysis == nil {
		err = RunStage(o.DB, postID, models.StageAnalyze, func() error {
			fresh, err := o.Analyzer.AnalyzeReference(ctx, deref(post.ReferenceImage), deref(post.SourceCaption), true)
			if err != nil {
				return err
			}
			brief.VideoAnalysis = fresh.VideoAnalysis
			briefJSON, err := json.Marshal(&brief)
			if err != nil {
				return err
			}
			post.VideoStyleBrief = datatypes.JSON(briefJSON)
			return o.DB.Model(post).Update("video_style_brief", post.VideoStyleBrief).Error
		})
		if err != nil {
			o.failPost(ctx, post, chatID, err)
			return err
		}
	}

	if post.Status == models.PostStatusReviewReady {
		if err := o.setStatus(post, models.PostStatusProcessing); err != nil {
			return err
		}
	}

	if err := o.runVideoGenerateStage(ctx, post, &brief, chatID); err != nil {
		return err
	}
	if o.cancelled(postID) {
		return nil
	}
	return o.finishReel(ctx, post, product, &brief, chatID)
}

// findExtensionJob resolves which VideoJob an extension applies to. A zero
// variation means "the clip currently on the post". Posts whose video came
// from the multi-scene path have no job rows; extension then works on the
// post's URL alone.
func (o *Orchestrator) findExtensionJob(postID uint, variation int, currentURL string) *models.VideoJob {
	var job models.VideoJob
	q := o.DB.Where("post_id = ? AND status IN ?", postID,
		[]string{models.VideoJobDone, models.VideoJobExtended})
	if variation > 0 {
		q = q.Where("variation_number = ?", variation)
	} else {
		q = q.Where("video_url = ?", currentURL)
	}
	if err := q.Order("variation_number ASC").First(&job).Error; err != nil {
		return nil
	}
	return &job
}

// RunVideoExtension extends a generated clip with a follow-on scene. The
// continuation prompt comes from the stored style brief; a free-text user
// instruction augments it. The selected VideoJob is overwritten in place
// (status extended) and the post's duration grows by 8s per extension.
func (o *Orchestrator) RunVideoExtension(ctx context.Context, postID uint, chatID int64, variation int, instruction string) error {
	post, _, err := o.loadPost(postID)
	if err != nil {
		return err
	}
	if post.VideoURL == nil {
		return o.Reviewer.SendText(ctx, chatID, "There is no video to extend on this post yet.")
	}

	job := o.findExtensionJob(postID, variation, *post.VideoURL)
	if variation > 0 && job == nil {
		return o.Reviewer.SendText(ctx, chatID,
			fmt.Sprintf("There is no video option %d on this post.", variation))
	}
	sourceURL := *post.VideoURL
	if job != nil && job.VideoURL != nil {
		sourceURL = *job.VideoURL
	}

	var brief StyleBrief
	if len(post.VideoStyleBrief) > 0 {
		_ = json.Unmarshal(post.VideoStyleBrief, &brief)
	} else if len(post.StyleBrief) > 0 {
		_ = json.Unmarshal(post.StyleBrief, &brief)
	}
	videoType := ""
	if post.VideoType != nil {
		videoType = *post.VideoType
	}
	prompt := BuildVideoPrompt(&brief, videoType)
	if instruction != "" {
		prompt += "\n\nNEXT SCENE: " + instruction
	}

	err = RunStage(o.DB, postID, models.StageExtend, func() error {
		localPath, err := downloadToTemp(ctx, sourceURL, fmt.Sprintf("extend-src-%d-*.mp4", postID))
		if err != nil {
			return SceneExtensionError(err)
		}
		defer os.Remove(localPath)

		clip, err := o.Veo.ExtendVideo(ctx, localPath, prompt)
		if err != nil {
			return err
		}
		defer os.Remove(clip.LocalPath)

		compressed, err := o.Media.CompressVideo(ctx, clip.LocalPath, o.Settings.MaxVideoSizeMB)
		if err != nil {
			compressed = clip.LocalPath
		}
		if compressed != clip.LocalPath {
			defer os.Remove(compressed)
		}

		data, err := os.ReadFile(compressed)
		if err != nil {
			return SceneExtensionError(err)
		}
		url, err := o.Storage.UploadBytes(ctx,
			fmt.Sprintf("videos/post-%d/extended-%s.mp4", postID, shortHex()),
			data, "video/mp4")
		if err != nil {
			return SceneExtensionError(err)
		}

		post.VideoURL = &url
		duration := 8
		if post.VideoDuration != nil {
			duration = *post.VideoDuration + 8
		}
		post.VideoDuration = &duration
		if err := o.DB.Transaction(func(tx *gorm.DB) error {
			if job != nil {
				if err := tx.Model(job).Updates(map[string]any{
					"video_url":   url,
					"status":      models.VideoJobExtended,
					"prompt_used": prompt,
				}).Error; err != nil {
					return err
				}
			}
			return tx.Model(post).Updates(map[string]any{
				"video_url":      post.VideoURL,
				"video_duration": post.VideoDuration,
			}).Error
		}); err != nil {
			return err
		}

		// Nothing references the superseded clip once the job row is
		// rewritten, so the object can go.
		if err := o.Storage.DeleteByURL(ctx, sourceURL); err != nil {
			log.Warn().Err(err).Str("url", sourceURL).Msg("Failed to delete superseded clip")
		}
		return nil
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	return o.Reviewer.SendVideoReview(ctx, chatID, postID, []string{*post.VideoURL},
		deref(post.StartFrameURL), deref(post.Caption), deref(post.Hashtags))
}

// RunMultiSceneAd builds a structured ad reel from a named scene preset.
// Scenes are generated sequentially, each extending the last; generation
// stops at the first failed scene and stitches whatever completed.
func (o *Orchestrator) RunMultiSceneAd(ctx context.Context, postID uint, chatID int64, structureName string) error {
	post, product, err := o.loadPost(postID)
	if err != nil {
		return err
	}
	if post.StyledImage == nil {
		return o.Reviewer.SendText(ctx, chatID, "Generate images first, then ask for an ad reel.")
	}

	var brief StyleBrief
	if len(post.VideoStyleBrief) > 0 {
		_ = json.Unmarshal(post.VideoStyleBrief, &brief)
	} else if len(post.StyleBrief) > 0 {
		_ = json.Unmarshal(post.StyleBrief, &brief)
	}

	if post.Status == models.PostStatusReviewReady {
		if err := o.setStatus(post, models.PostStatusProcessing); err != nil {
			return err
		}
	}

	err = RunStage(o.DB, postID, models.StageVideoGenerate, func() error {
		scenes := AdStructure(structureName)
		videoType := InferVideoType(&brief)
		if post.VideoType != nil && *post.VideoType != "" {
			videoType = *post.VideoType
		}

		frameBytes, err := fetchBytes(ctx, deref(post.StyledImage))
		if err != nil {
			return VeoGenerationError(fmt.Errorf("fetching start frame: %w", err))
		}
		framePath := filepath.Join(os.TempDir(), fmt.Sprintf("ad-frame-%d-%s.jpg", postID, shortHex()))
		if err := os.WriteFile(framePath, frameBytes, 0o644); err != nil {
			return VeoGenerationError(err)
		}
		defer os.Remove(framePath)

		var scenePaths []string
		defer func() {
			for _, p := range scenePaths {
				os.Remove(p)
			}
		}()

		totalDuration := 0
		for i, scene := range scenes {
			scenePrompt := BuildVideoPrompt(&brief, scene.SceneType) + " " + scene.MotionModifier

			var clip *GeneratedClip
			var genErr error
			if i == 0 {
				var clips []GeneratedClip
				clips, genErr = o.Veo.GenerateFromImage(ctx, framePath, scenePrompt, 1)
				if genErr == nil && len(clips) > 0 {
					clip = &clips[0]
				}
			} else {
				clip, genErr = o.Veo.ExtendVideo(ctx, scenePaths[len(scenePaths)-1], scenePrompt)
			}
			if genErr != nil || clip == nil {
				log.Warn().Err(genErr).Uint("post_id", postID).Int("scene", i+1).
					Str("scene_type", scene.SceneType).Msg("Scene generation failed, stopping sequence")
				break
			}
			scenePaths = append(scenePaths, clip.LocalPath)
			totalDuration += scene.Duration
		}

		if len(scenePaths) == 0 {
			return VeoGenerationError(fmt.Errorf("no scenes generated for %s", structureName))
		}

		// A single surviving scene still ships as a plain reel.
		finalPath := scenePaths[0]
		if len(scenePaths) > 1 {
			stitched, err := o.Media.StitchScenes(ctx, scenePaths, "cross-dissolve", 0.5)
			if err != nil {
				return SceneExtensionError(err)
			}
			defer os.Remove(stitched)
			finalPath = stitched
		}

		compressed, err := o.Media.CompressVideo(ctx, finalPath, o.Settings.MaxVideoSizeMB)
		if err != nil {
			compressed = finalPath
		}
		if compressed != finalPath {
			defer os.Remove(compressed)
		}

		data, err := os.ReadFile(compressed)
		if err != nil {
			return VeoGenerationError(err)
		}
		url, err := o.Storage.UploadBytes(ctx,
			fmt.Sprintf("videos/post-%d/ad-%s.mp4", postID, shortHex()),
			data, "video/mp4")
		if err != nil {
			return VeoGenerationError(err)
		}

		startFrameURL, err := o.Storage.UploadBytes(ctx,
			fmt.Sprintf("frames/post-%d/start.jpg", postID), frameBytes, "image/jpeg")
		if err != nil {
			return VeoGenerationError(err)
		}

		post.VideoURL = &url
		post.StartFrameURL = &startFrameURL
		post.VideoType = &videoType
		post.VideoDuration = &totalDuration
		post.MediaType = models.MediaTypeReel
		return o.DB.Model(post).Updates(map[string]any{
			"video_url":       post.VideoURL,
			"start_frame_url": post.StartFrameURL,
			"video_type":      post.VideoType,
			"video_duration":  post.VideoDuration,
			"media_type":      post.MediaType,
		}).Error
	})
	if err != nil {
		o.failPost(ctx, post, chatID, err)
		return err
	}

	return o.finishReel(ctx, post, product, &brief, chatID)
}

// downloadToTemp streams a URL into a temp file and returns its path.
func downloadToTemp(ctx context.Context, rawURL, pattern string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: status %d", rawURL, resp.StatusCode)
	}

	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
