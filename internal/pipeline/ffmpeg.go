package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// FFmpegTools shells out to ffmpeg for the media plumbing the video pipeline
// needs: first-frame extraction, scene stitching, and size-limit compression.
type FFmpegTools struct {
	ffmpegPath string
}

// NewFFmpegTools resolves the ffmpeg binary. A configured path wins; "ffmpeg"
// falls back to PATH lookup.
func NewFFmpegTools(configuredPath string) (*FFmpegTools, error) {
	if configuredPath != "" && configuredPath != "ffmpeg" {
		if _, err := os.Stat(configuredPath); err == nil {
			return &FFmpegTools{ffmpegPath: configuredPath}, nil
		}
	}
	resolved, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: set FFMPEG_PATH or install ffmpeg")
	}
	return &FFmpegTools{ffmpegPath: resolved}, nil
}

// ExtractFirstFrame returns the first rendered frame of a video as JPEG
// bytes, used for the preservation check against the styled start frame.
func (f *FFmpegTools) ExtractFirstFrame(ctx context.Context, videoPath string) ([]byte, error) {
	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("frame0_%s.jpg", shortHex()))
	defer os.Remove(outputPath)

	args := []string{
		"-y",
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("ffmpeg_output", truncate(string(output), 500)).Msg("Frame extraction failed")
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w", err)
	}
	return os.ReadFile(outputPath)
}

// StitchScenes joins clips into one video. With transition "none" (or empty)
// the clips are concatenated losslessly; with "cross-dissolve" each cut gets
// an xfade of transitionDuration seconds. A single clip is returned as-is.
func (f *FFmpegTools) StitchScenes(ctx context.Context, scenePaths []string, transition string, transitionDuration float64) (string, error) {
	if len(scenePaths) == 0 {
		return "", fmt.Errorf("no scenes to stitch")
	}
	if len(scenePaths) == 1 {
		return scenePaths[0], nil
	}

	if transition == "" || transition == "none" {
		return f.concatScenes(ctx, scenePaths)
	}
	return f.crossfadeScenes(ctx, scenePaths, transitionDuration)
}

// concatScenes uses the concat demuxer with stream copy.
func (f *FFmpegTools) concatScenes(ctx context.Context, scenePaths []string) (string, error) {
	listFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating concat list: %w", err)
	}
	defer os.Remove(listFile.Name())
	for _, path := range scenePaths {
		fmt.Fprintf(listFile, "file '%s'\n", path)
	}
	listFile.Close()

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("veo_concat_%s.mp4", shortHex()))
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("ffmpeg_output", truncate(string(output), 500)).Msg("Scene concat failed")
		return "", fmt.Errorf("ffmpeg concat failed: %w", err)
	}
	log.Info().Str("output", outputPath).Int("clips", len(scenePaths)).Msg("Scenes concatenated")
	return outputPath, nil
}

// crossfadeScenes chains xfade filters across all clips. Clip durations are
// probed so each dissolve starts just before the outgoing clip ends.
func (f *FFmpegTools) crossfadeScenes(ctx context.Context, scenePaths []string, duration float64) (string, error) {
	if duration <= 0 {
		duration = 0.5
	}

	durations := make([]float64, len(scenePaths))
	for i, path := range scenePaths {
		d, err := f.probeDuration(ctx, path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Duration probe failed, falling back to concat")
			return f.concatScenes(ctx, scenePaths)
		}
		durations[i] = d
	}

	var filter strings.Builder
	prev := "[0:v]"
	offset := 0.0
	for i := 1; i < len(scenePaths); i++ {
		offset += durations[i-1] - duration
		out := fmt.Sprintf("[vx%d]", i)
		if i == len(scenePaths)-1 {
			out = "[vout]"
		}
		fmt.Fprintf(&filter, "%s[%d:v]xfade=transition=fade:duration=%.2f:offset=%.2f%s;",
			prev, i, duration, offset, out)
		prev = out
	}
	filterStr := strings.TrimSuffix(filter.String(), ";")

	args := []string{"-y"}
	for _, path := range scenePaths {
		args = append(args, "-i", path)
	}
	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("veo_stitched_%s.mp4", shortHex()))
	args = append(args,
		"-filter_complex", filterStr,
		"-map", "[vout]",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	)
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("ffmpeg_output", truncate(string(output), 500)).Msg("Scene crossfade failed")
		return "", fmt.Errorf("ffmpeg xfade failed: %w", err)
	}
	log.Info().Str("output", outputPath).Int("clips", len(scenePaths)).Msg("Scenes stitched with cross-dissolve")
	return outputPath, nil
}

// probeDuration reads a clip's duration via ffprobe, assumed to sit next to
// ffmpeg.
func (f *FFmpegTools) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	ffprobe := filepath.Join(filepath.Dir(f.ffmpegPath), "ffprobe")
	if _, err := os.Stat(ffprobe); err != nil {
		resolved, err := exec.LookPath("ffprobe")
		if err != nil {
			return 0, fmt.Errorf("ffprobe not found")
		}
		ffprobe = resolved
	}

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
}

// CompressVideo re-encodes a video if it exceeds maxSizeMB. Compression
// failures degrade to returning the original path.
func (f *FFmpegTools) CompressVideo(ctx context.Context, videoPath string, maxSizeMB int) (string, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return "", err
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB <= float64(maxSizeMB) {
		return videoPath, nil
	}

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("veo_compressed_%s.mp4", shortHex()))
	args := []string{
		"-y",
		"-i", videoPath,
		"-c:v", "libx264",
		"-crf", "28",
		"-preset", "fast",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("ffmpeg_output", truncate(string(output), 500)).Msg("Compression failed, keeping original")
		return videoPath, nil
	}

	if compressed, err := os.Stat(outputPath); err == nil {
		log.Info().
			Float64("original_mb", sizeMB).
			Float64("compressed_mb", float64(compressed.Size())/(1024*1024)).
			Msg("Video compressed")
	}
	return outputPath, nil
}
