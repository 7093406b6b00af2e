package pipeline

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/naman7474/vak-social-media/internal/config"
)

// VeoClient generates short product clips with the Veo model through the
// genai SDK: image-to-video for new reels and video-to-video for scene
// extension.
type VeoClient struct {
	client       *genai.Client
	model        string
	aspectRatio  string
	resolution   string
	pollInterval time.Duration
	maxPoll      time.Duration
	dryRun       bool
}

// NewVeoClient builds a Veo client. Outside dry-run mode a missing API key is
// an error at call time, not construction time.
func NewVeoClient(ctx context.Context, settings *config.Settings) (*VeoClient, error) {
	v := &VeoClient{
		model:        settings.VeoModel,
		aspectRatio:  settings.VeoAspectRatio,
		resolution:   settings.VeoResolution,
		pollInterval: settings.VeoPollInterval,
		maxPoll:      settings.VeoMaxPoll,
		dryRun:       settings.DryRun,
	}
	if v.dryRun || settings.GoogleAPIKey == "" {
		return v, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  settings.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	v.client = client
	return v, nil
}

// GenerateFromImage produces up to variations clips from a styled start
// frame. Individual variation failures are tolerated; if every variation
// fails the aggregated reasons are raised as a generation error.
func (v *VeoClient) GenerateFromImage(ctx context.Context, startFramePath string, prompt string, variations int) ([]GeneratedClip, error) {
	if variations <= 0 || variations > len(videoVariationModifiers) {
		variations = len(videoVariationModifiers)
	}

	var clips []GeneratedClip
	var failures []string

	for i := 0; i < variations; i++ {
		modifier := videoVariationModifiers[i]
		fullPrompt := prompt + "\n\nMOTION STYLE: " + modifier

		started := time.Now()
		path, err := v.generateOne(ctx, startFramePath, fullPrompt)
		if err != nil {
			failures = append(failures, fmt.Sprintf("[variation %d] %v", i+1, err))
			log.Warn().Err(err).Int("variation", i+1).Msg("Veo variation failed")
			continue
		}
		clips = append(clips, GeneratedClip{
			LocalPath:         path,
			VariationNumber:   i + 1,
			Prompt:            fullPrompt,
			GenerationSeconds: int(time.Since(started).Seconds()),
		})
	}

	if len(clips) == 0 && len(failures) > 0 {
		return nil, VeoGenerationError(fmt.Errorf("no variation succeeded: %v", failures))
	}
	return clips, nil
}

func (v *VeoClient) generateOne(ctx context.Context, startFramePath, prompt string) (string, error) {
	if v.dryRun {
		return writeDryRunClip("veo_dryrun")
	}
	if v.client == nil {
		return "", VeoGenerationError(fmt.Errorf("veo client not initialised (missing GOOGLE_API_KEY)"))
	}

	imgBytes, err := os.ReadFile(startFramePath)
	if err != nil {
		return "", VeoGenerationError(err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(startFramePath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	op, err := v.client.Models.GenerateVideos(ctx, v.model, prompt,
		&genai.Image{ImageBytes: imgBytes, MIMEType: mimeType},
		&genai.GenerateVideosConfig{
			AspectRatio:    v.aspectRatio,
			Resolution:     v.resolution,
			NegativePrompt: NegativePrompt(),
		})
	if err != nil {
		return "", VeoGenerationError(err)
	}

	op, err = v.waitForOperation(ctx, op)
	if err != nil {
		return "", err
	}
	return v.saveResult(ctx, op, "veo_output")
}

// ExtendVideo continues a previously generated clip by another segment.
// Extension runs at 720p regardless of the configured resolution.
func (v *VeoClient) ExtendVideo(ctx context.Context, videoPath string, prompt string) (*GeneratedClip, error) {
	if v.dryRun {
		path, err := writeDryRunClip("veo_extended_dryrun")
		if err != nil {
			return nil, err
		}
		return &GeneratedClip{LocalPath: path, VariationNumber: 1, Prompt: prompt}, nil
	}
	if v.client == nil {
		return nil, SceneExtensionError(fmt.Errorf("veo client not initialised"))
	}

	file, err := v.client.Files.UploadFromPath(ctx, videoPath, nil)
	if err != nil {
		return nil, SceneExtensionError(err)
	}

	started := time.Now()
	op, err := v.client.Models.GenerateVideosFromSource(ctx, v.model,
		&genai.GenerateVideosSource{
			Prompt: prompt,
			Video:  &genai.Video{URI: file.URI, MIMEType: file.MIMEType},
		},
		&genai.GenerateVideosConfig{Resolution: "720p"})
	if err != nil {
		return nil, SceneExtensionError(err)
	}

	op, err = v.waitForOperation(ctx, op)
	if err != nil {
		return nil, SceneExtensionError(err)
	}

	path, err := v.saveResult(ctx, op, "veo_extended")
	if err != nil {
		return nil, SceneExtensionError(err)
	}
	return &GeneratedClip{
		LocalPath:         path,
		VariationNumber:   1,
		Prompt:            prompt,
		GenerationSeconds: int(time.Since(started).Seconds()),
	}, nil
}

// waitForOperation polls until the operation finishes or the poll budget is
// exhausted.
func (v *VeoClient) waitForOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	deadline := time.Now().Add(v.maxPoll)
	for !op.Done {
		if time.Now().After(deadline) {
			return nil, VeoTimeoutError(fmt.Errorf("veo generation timed out after %s", v.maxPoll))
		}
		select {
		case <-ctx.Done():
			return nil, VeoGenerationError(ctx.Err())
		case <-time.After(v.pollInterval):
		}

		var err error
		op, err = v.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, VeoGenerationError(err)
		}
	}
	return op, nil
}

// saveResult downloads the first generated video to a temp file.
func (v *VeoClient) saveResult(ctx context.Context, op *genai.GenerateVideosOperation, prefix string) (string, error) {
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return "", VeoGenerationError(fmt.Errorf("veo returned no generated videos"))
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil {
		return "", VeoGenerationError(fmt.Errorf("veo response did not include downloadable video content"))
	}

	data, err := v.client.Files.Download(ctx, video, nil)
	if err != nil {
		return "", VeoGenerationError(err)
	}
	if len(data) == 0 {
		data = video.VideoBytes
	}
	if len(data) == 0 {
		return "", VeoGenerationError(fmt.Errorf("downloaded video is empty"))
	}

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s.mp4", prefix, shortHex()))
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", VeoGenerationError(err)
	}
	log.Info().Str("output", outputPath).Int("bytes", len(data)).Msg("Veo video saved")
	return outputPath, nil
}

func writeDryRunClip(prefix string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s.mp4", prefix, shortHex()))
	if err := os.WriteFile(path, make([]byte, 1024), 0o644); err != nil {
		return "", VeoGenerationError(err)
	}
	return path, nil
}

func shortHex() string {
	return uuid.NewString()[:8]
}
