// Package video composes the final MP4: a Ken Burns zoom/pan image track cut
// proportionally to the narration length, an optional time-windowed CTA
// overlay, and the finished audio track muxed with shortest-stream wins.
package video

import "math"

// Params are the visual effect parameters of a composition.
type Params struct {
	// ZoomBase is the center of the zoom oscillation (>= 1).
	ZoomBase float64
	// ZoomAmplitude is the oscillation half-range around ZoomBase.
	ZoomAmplitude float64
	// ZoomPeriodSec is the oscillation period in seconds.
	ZoomPeriodSec float64
	// FPS is the output frame rate.
	FPS int
	// Width and Height are the output canvas dimensions.
	Width  int
	Height int
	// VideoBitrate bounds the H.264 encode, e.g. "2500k".
	VideoBitrate string
	// Overscan scales the pre-zoom canvas above the output size (> 1) so the
	// zoomed view never samples outside the source frame.
	Overscan float64
	// CTAHeadSec and CTATailSec are the overlay visibility windows at the
	// start and end of the video.
	CTAHeadSec float64
	CTATailSec float64
}

// PeriodFrames converts the zoom period from seconds to frames.
func PeriodFrames(periodSec float64, fps int) int {
	frames := int(math.Round(periodSec * float64(fps)))
	if frames < 1 {
		frames = 1
	}
	return frames
}

// ZoomFactor returns the zoom level at a frame index. The function is a
// sinusoidal oscillation between ZoomBase-ZoomAmplitude and
// ZoomBase+ZoomAmplitude with period periodFrames: it is continuous across
// segment boundaries and never saturates at a maximum the way a monotonic
// ramp does. Frame index, not wall-clock time, drives it so the motion stays
// decoupled from frame delivery.
func ZoomFactor(frame int, base, amplitude float64, periodFrames int) float64 {
	if periodFrames < 1 {
		periodFrames = 1
	}
	return base + amplitude*math.Sin(2*math.Pi*float64(frame)/float64(periodFrames))
}

// OverscanDims returns the overscanned canvas size for an output canvas,
// rounded up to even dimensions. Chroma-subsampled encoders need even sizes.
func OverscanDims(width, height int, factor float64) (int, int) {
	if factor < 1 {
		factor = 1
	}
	return evenCeil(float64(width) * factor), evenCeil(float64(height) * factor)
}

// PanOffsets returns the centered crop offsets for a zoom level applied to a
// source canvas, with both coordinates rounded down to even pixels. Odd-pixel
// offsets on chroma-subsampled output are a known flicker source.
func PanOffsets(srcWidth, srcHeight int, zoom float64) (x, y int) {
	if zoom < 1 {
		zoom = 1
	}
	x = evenFloor((float64(srcWidth) - float64(srcWidth)/zoom) / 2)
	y = evenFloor((float64(srcHeight) - float64(srcHeight)/zoom) / 2)
	return x, y
}

// SegmentFrames returns the frame count of one image segment when the total
// duration is partitioned evenly across n images.
func SegmentFrames(totalDurationSec float64, n, fps int) int {
	if n < 1 {
		n = 1
	}
	frames := int(math.Round(totalDurationSec / float64(n) * float64(fps)))
	if frames < 1 {
		frames = 1
	}
	return frames
}

func evenFloor(v float64) int {
	n := int(math.Floor(v))
	if n < 0 {
		n = 0
	}
	return n - n%2
}

func evenCeil(v float64) int {
	n := int(math.Ceil(v))
	if n%2 != 0 {
		n++
	}
	return n
}
