// Package audio provides the narration-track processing stages: format
// normalization, manifest concatenation, trailing-silence trimming, duration
// enforcement and final encoding. Every stage shells out to ffmpeg through
// the media.Runner interface and is fatal on failure; media processing is
// treated as deterministic, so nothing here is retried.
package audio

import (
	"context"
	"strconv"

	"github.com/birkanfirat/ffmpeg-video-api/internal/media"
)

// Canonical clip format. Concatenating heterogeneous codecs or sample rates
// produces corrupted or desynchronized output, so every clip is converted to
// this format before the concat step; concatenation is then a lossless
// stream copy.
const (
	// CanonicalSampleRate is the sample rate of normalized clips in Hz.
	CanonicalSampleRate = 48000
	// CanonicalChannels is the channel count of normalized clips.
	CanonicalChannels = 1
	// CanonicalCodec is the uncompressed codec of normalized clips.
	CanonicalCodec = "pcm_s16le"
)

// Normalizer converts clips of arbitrary container/codec to the canonical
// format. Normalizing an already-canonical file yields an equivalent file.
type Normalizer struct {
	runner media.Runner
}

// NewNormalizer creates a Normalizer backed by the given media runner.
func NewNormalizer(runner media.Runner) *Normalizer {
	return &Normalizer{runner: runner}
}

// Normalize decodes inputPath and writes a canonical WAV to outputPath.
// Malformed input audio fails the call, which is fatal to the owning segment
// and therefore to the job.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		"-c:a", CanonicalCodec,
		outputPath,
	}
	return n.runner.Run(ctx, "normalize", args)
}
