package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/birkanfirat/ffmpeg-video-api/internal/media"
)

// FinishOpts tunes the finishing stages.
type FinishOpts struct {
	// SilenceThresholdDB is the trailing-silence detection threshold.
	SilenceThresholdDB int
	// MinSilenceSec is the minimum trailing-silence duration that gets trimmed.
	MinSilenceSec float64
	// TargetDurationSec pads with silence and truncates to an exact length
	// when > 0. Zero keeps the natural narration length.
	TargetDurationSec float64
	// Bitrate is the AAC bitrate of the final encode, e.g. "192k".
	Bitrate string
}

// DefaultFinishOpts returns the finishing defaults.
func DefaultFinishOpts() FinishOpts {
	return FinishOpts{
		SilenceThresholdDB: -50,
		MinSilenceSec:      0.3,
		TargetDurationSec:  0,
		Bitrate:            "192k",
	}
}

// Finisher turns an assembled concat manifest into the final narration track.
type Finisher struct {
	runner media.Runner
	opts   FinishOpts
}

// NewFinisher creates a Finisher backed by the given media runner.
func NewFinisher(runner media.Runner, opts FinishOpts) *Finisher {
	if opts.Bitrate == "" {
		opts.Bitrate = "192k"
	}
	if opts.SilenceThresholdDB == 0 {
		opts.SilenceThresholdDB = -50
	}
	if opts.MinSilenceSec <= 0 {
		opts.MinSilenceSec = 0.3
	}
	return &Finisher{runner: runner, opts: opts}
}

// Finish runs concatenate → trim → duration policy → encode in order, each a
// discrete, independently failable stage, and returns the path of the encoded
// narration track. Intermediate files are left in dir; the job directory
// teardown reclaims them.
func (f *Finisher) Finish(ctx context.Context, manifestPath, dir string) (string, error) {
	concatPath := filepath.Join(dir, "narration_concat.wav")
	if err := f.Concat(ctx, manifestPath, concatPath); err != nil {
		return "", fmt.Errorf("concat: %w", err)
	}

	trimmedPath := filepath.Join(dir, "narration_trimmed.wav")
	if err := f.TrimTrailingSilence(ctx, concatPath, trimmedPath); err != nil {
		return "", fmt.Errorf("trim silence: %w", err)
	}

	sizedPath := trimmedPath
	if f.opts.TargetDurationSec > 0 {
		sizedPath = filepath.Join(dir, "narration_sized.wav")
		if err := f.EnforceDuration(ctx, trimmedPath, sizedPath); err != nil {
			return "", fmt.Errorf("enforce duration: %w", err)
		}
	}

	finalPath := filepath.Join(dir, "narration.m4a")
	if err := f.Encode(ctx, sizedPath, finalPath); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	return finalPath, nil
}

// Concat stream-copies all manifest entries into one uncompressed track.
// Lossless because every input already shares the canonical format.
func (f *Finisher) Concat(ctx context.Context, manifestPath, outputPath string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outputPath,
	}
	return f.runner.Run(ctx, "concat", args)
}

// TrimTrailingSilence removes a low-amplitude tail so the video does not end
// on dead air. The track is reversed, leading silence removed, and reversed
// back; signal below the minimum silence duration is never trimmed.
func (f *Finisher) TrimTrailingSilence(ctx context.Context, inputPath, outputPath string) error {
	filter := fmt.Sprintf(
		"areverse,silenceremove=start_periods=1:start_duration=%g:start_threshold=%ddB,areverse",
		f.opts.MinSilenceSec, f.opts.SilenceThresholdDB,
	)
	args := []string{
		"-y",
		"-i", inputPath,
		"-af", filter,
		outputPath,
	}
	return f.runner.Run(ctx, "trim_silence", args)
}

// EnforceDuration pads with silence and truncates so the output is exactly
// the configured target length.
func (f *Finisher) EnforceDuration(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-af", "apad",
		"-t", fmt.Sprintf("%.3f", f.opts.TargetDurationSec),
		outputPath,
	}
	return f.runner.Run(ctx, "enforce_duration", args)
}

// Encode compresses the finished PCM track to AAC for muxing.
func (f *Finisher) Encode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:a", "aac",
		"-b:a", f.opts.Bitrate,
		outputPath,
	}
	return f.runner.Run(ctx, "encode_audio", args)
}
