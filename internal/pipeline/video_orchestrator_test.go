package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"strings"
	"testing"

	"github.com/naman7474/vak-social-media/internal/db"
	"github.com/naman7474/vak-social-media/internal/models"
)

func blackJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64)), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

type fakeVeo struct {
	t                *testing.T
	genCalls         int
	extCalls         int
	lastExtendPrompt string
	extendFail       map[int]error // keyed by extension call number, 1-based
}

func (f *fakeVeo) writeClip(name string) string {
	f.t.Helper()
	path, err := os.CreateTemp("", name)
	if err != nil {
		f.t.Fatalf("creating clip file: %v", err)
	}
	path.WriteString("fake mp4 payload")
	path.Close()
	f.t.Cleanup(func() { os.Remove(path.Name()) })
	return path.Name()
}

func (f *fakeVeo) GenerateFromImage(ctx context.Context, startFramePath, prompt string, variations int) ([]GeneratedClip, error) {
	f.genCalls++
	clips := make([]GeneratedClip, variations)
	for i := range clips {
		clips[i] = GeneratedClip{
			LocalPath:         f.writeClip(fmt.Sprintf("clip-%d-*.mp4", i+1)),
			VariationNumber:   i + 1,
			Prompt:            prompt,
			GenerationSeconds: 45,
		}
	}
	return clips, nil
}

func (f *fakeVeo) ExtendVideo(ctx context.Context, videoPath, prompt string) (*GeneratedClip, error) {
	f.extCalls++
	f.lastExtendPrompt = prompt
	if err := f.extendFail[f.extCalls]; err != nil {
		return nil, err
	}
	return &GeneratedClip{
		LocalPath:         f.writeClip("extended-*.mp4"),
		VariationNumber:   1,
		Prompt:            prompt,
		GenerationSeconds: 60,
	}, nil
}

type fakeMedia struct {
	t           *testing.T
	firstFrame  []byte
	stitchCalls int
	recompress  bool
}

func (f *fakeMedia) ExtractFirstFrame(ctx context.Context, videoPath string) ([]byte, error) {
	return f.firstFrame, nil
}

func (f *fakeMedia) StitchScenes(ctx context.Context, scenePaths []string, transition string, transitionDuration float64) (string, error) {
	f.stitchCalls++
	out, err := os.CreateTemp("", "stitched-*.mp4")
	if err != nil {
		return "", err
	}
	out.WriteString("stitched payload")
	out.Close()
	f.t.Cleanup(func() { os.Remove(out.Name()) })
	return out.Name(), nil
}

func (f *fakeMedia) CompressVideo(ctx context.Context, videoPath string, maxSizeMB int) (string, error) {
	if !f.recompress {
		return videoPath, nil
	}
	out, err := os.CreateTemp("", "compressed-*.mp4")
	if err != nil {
		return "", err
	}
	out.WriteString("compressed payload")
	out.Close()
	f.t.Cleanup(func() { os.Remove(out.Name()) })
	return out.Name(), nil
}

func TestRunVideoGenerationPipeline(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)

	analyzer := &fakeAnalyzer{}
	captioner := &fakeCaptioner{}
	o.Analyzer = analyzer
	o.Captioner = captioner
	o.Veo = &fakeVeo{t: t}
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)}
	post := newDraftPost(t, gdb, srv)

	if err := o.RunVideoGenerationPipeline(context.Background(), post.ID, 42); err != nil {
		t.Fatalf("video pipeline failed: %v", err)
	}

	if !analyzer.forVideo {
		t.Error("analyzer was not asked for video fields")
	}
	if !captioner.isReel {
		t.Error("captioner was not asked for a reel caption")
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.Status != models.PostStatusReviewReady {
		t.Errorf("status = %q, want review_ready", got.Status)
	}
	if got.MediaType != models.MediaTypeReel {
		t.Errorf("media_type = %q, want reel", got.MediaType)
	}
	if got.VideoURL == nil || !strings.Contains(*got.VideoURL, "videos/post-") {
		t.Errorf("video_url = %v", got.VideoURL)
	}
	if got.StartFrameURL == nil {
		t.Error("start_frame_url not set")
	}
	if got.ThumbOffsetMs == nil || *got.ThumbOffsetMs != 3000 {
		t.Errorf("thumb_offset_ms = %v, want 3000", got.ThumbOffsetMs)
	}

	var jobs []models.VideoJob
	gdb.Order("variation_number").Find(&jobs, "post_id = ?", post.ID)
	if len(jobs) != videoVariations {
		t.Fatalf("got %d video jobs, want %d", len(jobs), videoVariations)
	}
	for _, j := range jobs {
		if j.Status != models.VideoJobDone {
			t.Errorf("job %d status = %q, want done", j.VariationNumber, j.Status)
		}
		if j.VideoURL == nil {
			t.Errorf("job %d has no video url", j.VariationNumber)
		}
	}

	want := []string{
		"download:succeeded",
		"analyze:succeeded",
		"style:succeeded",
		"video_generate:succeeded",
		"caption:succeeded",
		"review:succeeded",
	}
	runs := stageSequence(t, gdb, post.ID)
	if len(runs) != len(want) {
		t.Fatalf("stage runs = %v, want %v", runs, want)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, runs[i], want[i])
		}
	}

	if reviewer.videoReview != 1 {
		t.Errorf("video reviews sent = %d, want 1", reviewer.videoReview)
	}
}

func TestRunVideoGenerationPipelineAllVariationsRejected(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	o.Settings.PreservationEnforce = true
	o.Veo = &fakeVeo{t: t}
	// Every clip's first frame is a flat black image, nothing like the
	// styled start frame, so the preservation check rejects every variation.
	o.Media = &fakeMedia{t: t, firstFrame: blackJPEG(t)}
	post := newDraftPost(t, gdb, srv)

	err := o.RunVideoGenerationPipeline(context.Background(), post.ID, 42)
	if err == nil {
		t.Fatal("expected error when every variation is rejected")
	}
	for i := 1; i <= videoVariations; i++ {
		if !strings.Contains(err.Error(), fmt.Sprintf("variation %d scored", i)) {
			t.Errorf("aggregated error %q missing reason for variation %d", err, i)
		}
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.Status != models.PostStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorCode == nil || *got.ErrorCode != "video_quality_error" {
		t.Errorf("error_code = %v, want video_quality_error", got.ErrorCode)
	}
	if len(reviewer.texts) != 1 {
		t.Errorf("got %d chat messages, want 1", len(reviewer.texts))
	}

	var jobs int64
	gdb.Model(&models.VideoJob{}).Where("post_id = ?", post.ID).Count(&jobs)
	if jobs != 0 {
		t.Errorf("found %d video jobs, want none when every clip is rejected", jobs)
	}
}

func TestRunReelThisConversion(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	o.Veo = &fakeVeo{t: t}
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)}
	post := newDraftPost(t, gdb, srv)

	// Run the image pipeline first so a styled frame exists.
	if err := o.RunGenerationPipeline(context.Background(), post.ID, 42); err != nil {
		t.Fatalf("image pipeline: %v", err)
	}
	if err := o.RunReelThisConversion(context.Background(), post.ID, 42); err != nil {
		t.Fatalf("conversion: %v", err)
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.MediaType != models.MediaTypeReel {
		t.Errorf("media_type = %q, want reel", got.MediaType)
	}
	if got.VideoURL == nil {
		t.Error("video_url not set")
	}
	if len(got.VideoStyleBrief) == 0 {
		t.Error("video_style_brief not persisted by the re-analysis")
	}
	if reviewer.videoReview != 1 {
		t.Errorf("video reviews = %d, want 1", reviewer.videoReview)
	}

	// The conversion must not re-run download or style.
	var downloads int64
	gdb.Model(&models.JobRun{}).Where("post_id = ? AND stage = ?", post.ID, models.StageDownload).Count(&downloads)
	if downloads != 1 {
		t.Errorf("download ran %d times, want 1", downloads)
	}
}

func TestRunVideoExtensionRewritesSelectedJob(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	veo := &fakeVeo{t: t}
	o.Veo = veo
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)}
	storage := o.Storage.(*fakeStorage)

	post := newDraftPost(t, gdb, srv)
	oldURL := srv.URL + "/old-clip.mp4"
	duration := 8
	gdb.Model(post).Updates(map[string]any{
		"status":         models.PostStatusReviewReady,
		"media_type":     models.MediaTypeReel,
		"video_url":      oldURL,
		"video_duration": duration,
	})
	job := models.VideoJob{PostID: post.ID, Status: models.VideoJobDone, VariationNumber: 1, VideoURL: &oldURL}
	if err := gdb.Create(&job).Error; err != nil {
		t.Fatalf("creating video job: %v", err)
	}

	if err := o.RunVideoExtension(context.Background(), post.ID, 42, 1, "slow pan across the border detail"); err != nil {
		t.Fatalf("extension: %v", err)
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.VideoURL == nil || *got.VideoURL == oldURL {
		t.Errorf("video_url = %v, want a new clip", got.VideoURL)
	}
	if got.VideoDuration == nil || *got.VideoDuration != 16 {
		t.Errorf("video_duration = %v, want 16", got.VideoDuration)
	}

	var gotJob models.VideoJob
	gdb.First(&gotJob, job.ID)
	if gotJob.Status != models.VideoJobExtended {
		t.Errorf("job status = %q, want extended", gotJob.Status)
	}
	if gotJob.VideoURL == nil || *gotJob.VideoURL == oldURL {
		t.Errorf("job video_url = %v, still the superseded clip", gotJob.VideoURL)
	}
	if *gotJob.VideoURL != *got.VideoURL {
		t.Errorf("job url %q and post url %q diverged", *gotJob.VideoURL, *got.VideoURL)
	}

	// The continuation prompt is built from the stored brief, with the user
	// instruction appended.
	if !strings.Contains(veo.lastExtendPrompt, "CRITICAL RULES") {
		t.Error("extension prompt was not brief-derived")
	}
	if !strings.Contains(veo.lastExtendPrompt, "slow pan across the border detail") {
		t.Errorf("instruction missing from prompt %q", veo.lastExtendPrompt)
	}

	if len(storage.deletes) != 1 || storage.deletes[0] != oldURL {
		t.Errorf("old clip not deleted: %v", storage.deletes)
	}
	if reviewer.videoReview != 1 {
		t.Errorf("video reviews = %d, want 1", reviewer.videoReview)
	}
}

func TestRunVideoExtensionUnknownVariation(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	o.Veo = &fakeVeo{t: t}
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)}

	post := newDraftPost(t, gdb, srv)
	clipURL := srv.URL + "/clip.mp4"
	gdb.Model(post).Updates(map[string]any{
		"status":     models.PostStatusReviewReady,
		"media_type": models.MediaTypeReel,
		"video_url":  clipURL,
	})

	if err := o.RunVideoExtension(context.Background(), post.ID, 42, 3, "more flow"); err != nil {
		t.Fatalf("extension: %v", err)
	}
	if len(reviewer.texts) != 1 || !strings.Contains(reviewer.texts[0], "option 3") {
		t.Errorf("expected unknown-option message, got %v", reviewer.texts)
	}
	if got := stageSequence(t, gdb, post.ID); len(got) != 0 {
		t.Errorf("stages ran for unknown variation: %v", got)
	}
}

func TestRunVideoExtensionFailureMarksPostFailed(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	o.Veo = &fakeVeo{t: t, extendFail: map[int]error{
		1: SceneExtensionError(errors.New("veo rejected the source clip")),
	}}
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)}

	post := newDraftPost(t, gdb, srv)
	gdb.Model(post).Updates(map[string]any{
		"status":     models.PostStatusReviewReady,
		"media_type": models.MediaTypeReel,
		"video_url":  srv.URL + "/clip.mp4",
	})

	if err := o.RunVideoExtension(context.Background(), post.ID, 42, 0, "keep going"); err == nil {
		t.Fatal("expected error")
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.Status != models.PostStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorCode == nil || *got.ErrorCode != "scene_extension_error" {
		t.Errorf("error_code = %v, want scene_extension_error", got.ErrorCode)
	}
	if len(reviewer.texts) != 1 {
		t.Errorf("got %d chat messages, want 1", len(reviewer.texts))
	}
}

func TestRunMultiSceneAdStopsAtFirstFailure(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, reviewer, _ := newTestOrchestrator(t, gdb, srv)
	veo := &fakeVeo{t: t, extendFail: map[int]error{
		2: SceneExtensionError(errors.New("veo rejected the prompt")),
	}}
	media := &fakeMedia{t: t, firstFrame: testJPEG(t)}
	o.Veo = veo
	o.Media = media
	post := newDraftPost(t, gdb, srv)

	if err := o.RunGenerationPipeline(context.Background(), post.ID, 42); err != nil {
		t.Fatalf("image pipeline: %v", err)
	}
	if err := o.RunMultiSceneAd(context.Background(), post.ID, 42, "30_second_reel"); err != nil {
		t.Fatalf("multi-scene ad: %v", err)
	}

	// Scene 1 generated, scene 2 extended, scene 3 failed: two scenes survive
	// and still get stitched.
	if veo.extCalls != 2 {
		t.Errorf("extend calls = %d, want 2 (stop after first failure)", veo.extCalls)
	}
	if media.stitchCalls != 1 {
		t.Errorf("stitch calls = %d, want 1", media.stitchCalls)
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.MediaType != models.MediaTypeReel {
		t.Errorf("media_type = %q, want reel", got.MediaType)
	}
	if got.VideoURL == nil || !strings.Contains(*got.VideoURL, "/ad-") {
		t.Errorf("video_url = %v, want an ad clip", got.VideoURL)
	}
	if reviewer.videoReview != 1 {
		t.Errorf("video reviews = %d, want 1", reviewer.videoReview)
	}
}

func TestRunMultiSceneAdSingleSceneSkipsStitch(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, _, _ := newTestOrchestrator(t, gdb, srv)
	veo := &fakeVeo{t: t, extendFail: map[int]error{
		1: SceneExtensionError(errors.New("quota exhausted")),
	}}
	media := &fakeMedia{t: t, firstFrame: testJPEG(t)}
	o.Veo = veo
	o.Media = media
	post := newDraftPost(t, gdb, srv)

	if err := o.RunGenerationPipeline(context.Background(), post.ID, 42); err != nil {
		t.Fatalf("image pipeline: %v", err)
	}
	if err := o.RunMultiSceneAd(context.Background(), post.ID, 42, "15_second_reel"); err != nil {
		t.Fatalf("multi-scene ad: %v", err)
	}

	if media.stitchCalls != 0 {
		t.Errorf("stitch calls = %d, want 0 for a single surviving scene", media.stitchCalls)
	}

	var got models.Post
	gdb.First(&got, post.ID)
	if got.VideoURL == nil {
		t.Error("single surviving scene should still ship as a reel")
	}
}

func TestRunPublishReelCompressesFirst(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, _, publisher := newTestOrchestrator(t, gdb, srv)
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t), recompress: true}
	storage := o.Storage.(*fakeStorage)

	post := newDraftPost(t, gdb, srv)
	gdb.Model(post).Updates(map[string]any{
		"status":     models.PostStatusReviewReady,
		"media_type": models.MediaTypeReel,
		"video_url":  srv.URL + "/clip.mp4",
	})
	post.Status = models.PostStatusReviewReady
	variant := models.PostVariant{PostID: post.ID, VariantIndex: 1, PreviewURL: srv.URL + "/v1.jpg", SSIMScore: 0.9, IsValid: true}
	if err := gdb.Create(&variant).Error; err != nil {
		t.Fatalf("creating variant: %v", err)
	}

	if err := o.RunPublish(context.Background(), post.ID, 42, "founder"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(publisher.reelURLs) != 1 {
		t.Fatalf("PostReel called %d times, want 1", len(publisher.reelURLs))
	}
	if !strings.Contains(publisher.reelURLs[0], "/publish-") {
		t.Errorf("published %q, want the re-encoded upload", publisher.reelURLs[0])
	}

	uploaded := false
	for _, key := range storage.uploads {
		if strings.HasPrefix(key, fmt.Sprintf("videos/post-%d/publish-", post.ID)) {
			uploaded = true
		}
	}
	if !uploaded {
		t.Errorf("compressed reel not uploaded, uploads: %v", storage.uploads)
	}
}

func TestRunPublishReelFallsBackWhenCompressionFails(t *testing.T) {
	gdb := db.OpenTest(t)
	srv := imageServer(t)
	o, _, publisher := newTestOrchestrator(t, gdb, srv)
	o.Media = &fakeMedia{t: t, firstFrame: testJPEG(t)} // compress is a no-op

	clipURL := srv.URL + "/clip.mp4"
	post := newDraftPost(t, gdb, srv)
	gdb.Model(post).Updates(map[string]any{
		"status":     models.PostStatusReviewReady,
		"media_type": models.MediaTypeReel,
		"video_url":  clipURL,
	})
	post.Status = models.PostStatusReviewReady
	variant := models.PostVariant{PostID: post.ID, VariantIndex: 1, PreviewURL: srv.URL + "/v1.jpg", SSIMScore: 0.9, IsValid: true}
	if err := gdb.Create(&variant).Error; err != nil {
		t.Fatalf("creating variant: %v", err)
	}

	if err := o.RunPublish(context.Background(), post.ID, 42, "founder"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(publisher.reelURLs) != 1 || publisher.reelURLs[0] != clipURL {
		t.Errorf("published %v, want the original clip URL", publisher.reelURLs)
	}
}
