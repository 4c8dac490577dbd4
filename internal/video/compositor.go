package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/birkanfirat/ffmpeg-video-api/internal/media"
)

// Static errors for composition.
var (
	// ErrNoImages is returned when a composition has no background images.
	ErrNoImages = errors.New("video: at least one background image is required")
	// ErrAudioRequired is returned when no audio track is provided.
	ErrAudioRequired = errors.New("video: audio track is required")
)

// ComposeSpec describes one composition.
type ComposeSpec struct {
	// Images are the background image paths in display order.
	Images []string
	// AudioPath is the finished narration track; its measured length drives
	// the total duration and the per-image partition.
	AudioPath string
	// CTAPath is the optional call-to-action overlay image.
	CTAPath string
	// Params are the visual effect parameters.
	Params Params
	// OutputPath is the MP4 destination.
	OutputPath string
}

// Compositor renders compositions through the media runner. There is no
// fallback renderer; an encoding failure is fatal to the caller.
type Compositor struct {
	runner media.Runner
	logger *slog.Logger
}

// NewCompositor creates a Compositor.
func NewCompositor(runner media.Runner, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{runner: runner, logger: logger}
}

// Compose renders spec into a web-playable MP4. The audio track is
// authoritative for total length; `-shortest` is a safety net, not an active
// truncation, since the image track is sized from the audio's measured
// duration.
func (c *Compositor) Compose(ctx context.Context, spec ComposeSpec) error {
	if len(spec.Images) == 0 {
		return ErrNoImages
	}
	if spec.AudioPath == "" {
		return ErrAudioRequired
	}

	totalDur, err := c.runner.Duration(ctx, spec.AudioPath)
	if err != nil {
		return fmt.Errorf("video: measure audio duration: %w", err)
	}

	graph := buildFilterGraph(len(spec.Images), spec.CTAPath != "", totalDur, spec.Params)

	c.logger.Debug("composing video",
		slog.Int("images", len(spec.Images)),
		slog.Float64("duration_sec", totalDur),
		slog.Bool("cta", spec.CTAPath != ""),
	)

	args := []string{"-y"}
	for _, img := range spec.Images {
		args = append(args, "-i", img)
	}
	args = append(args, "-i", spec.AudioPath)
	if spec.CTAPath != "" {
		args = append(args, "-i", spec.CTAPath)
	}

	args = append(args,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", len(spec.Images)),
	)
	args = append(args, encodeArgs(spec.Params)...)
	args = append(args, spec.OutputPath)

	return c.runner.Run(ctx, "render_mp4", args)
}

// RenderSingle is the legacy single-shot path: one background image, an
// already-finished audio track, zoom/pan only, no CTA and no concatenation.
func (c *Compositor) RenderSingle(ctx context.Context, imagePath, audioPath string, p Params, outputPath string) error {
	return c.Compose(ctx, ComposeSpec{
		Images:     []string{imagePath},
		AudioPath:  audioPath,
		Params:     p,
		OutputPath: outputPath,
	})
}

// encodeArgs produces the constrained, web-playable output encoding: bounded
// bitrate H.264, AAC audio, keyframe interval at 2x frame rate for seeking,
// shortest-stream truncation and faststart for progressive playback.
func encodeArgs(p Params) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", p.VideoBitrate,
		"-maxrate", p.VideoBitrate,
		"-bufsize", doubleBitrate(p.VideoBitrate),
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(p.FPS * 2),
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
	}
}

// doubleBitrate doubles a "<n>k"/"<n>M" bitrate string for the VBV buffer,
// falling back to the input when it cannot be parsed.
func doubleBitrate(bitrate string) string {
	for _, suffix := range []string{"k", "K", "m", "M"} {
		if strings.HasSuffix(bitrate, suffix) {
			if n, err := strconv.Atoi(strings.TrimSuffix(bitrate, suffix)); err == nil {
				return fmt.Sprintf("%d%s", n*2, suffix)
			}
		}
	}
	return bitrate
}
