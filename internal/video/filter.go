package video

import (
	"fmt"
	"strings"
)

// zoomExpr builds the zoompan z expression: the same sinusoid ZoomFactor
// computes in Go, expressed over ffmpeg's output frame counter `on`.
func zoomExpr(base, amplitude float64, periodFrames int) string {
	return fmt.Sprintf("%g+%g*sin(2*PI*on/%d)", base, amplitude, periodFrames)
}

// panExprs builds the zoompan x/y expressions: centered crop offsets rounded
// down to even pixel coordinates (floor(v/4)*2 == even-floor of v/2).
func panExprs() (x, y string) {
	return "floor((iw-iw/zoom)/4)*2", "floor((ih-ih/zoom)/4)*2"
}

// segmentChain builds the filter chain for image input index i: upscale and
// crop to the overscanned canvas before zooming (so the zoomed view never
// samples outside the source frame), apply the periodic zoompan for the
// segment's frame count, and reset presentation timestamps so segments
// concatenate without a time jump.
func segmentChain(i, overW, overH, segFrames int, p Params, periodFrames int) string {
	x, y := panExprs()
	return fmt.Sprintf(
		"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,"+
			"zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d,setpts=PTS-STARTPTS[v%d]",
		i,
		overW, overH,
		overW, overH,
		zoomExpr(p.ZoomBase, p.ZoomAmplitude, periodFrames),
		x, y,
		segFrames,
		p.Width, p.Height,
		p.FPS,
		i,
	)
}

// ctaEnableExpr gates overlay visibility to the head and tail windows. The
// overlay is never shown for the whole duration.
func ctaEnableExpr(totalDur, headSec, tailSec float64) string {
	tailStart := totalDur - tailSec
	if tailStart < headSec {
		tailStart = headSec
	}
	return fmt.Sprintf("between(t,0,%.3f)+between(t,%.3f,%.3f)", headSec, tailStart, totalDur)
}

// buildFilterGraph assembles the complete filter_complex for a composition.
// Input layout: images occupy indexes [0,n), the audio track is input n, and
// the CTA image, when present, is input n+1.
func buildFilterGraph(nImages int, hasCTA bool, totalDur float64, p Params) string {
	overW, overH := OverscanDims(p.Width, p.Height, p.Overscan)
	periodFrames := PeriodFrames(p.ZoomPeriodSec, p.FPS)
	segFrames := SegmentFrames(totalDur, nImages, p.FPS)

	var parts []string
	for i := 0; i < nImages; i++ {
		parts = append(parts, segmentChain(i, overW, overH, segFrames, p, periodFrames))
	}

	videoOut := "[v0]"
	if nImages > 1 {
		var labels strings.Builder
		for i := 0; i < nImages; i++ {
			fmt.Fprintf(&labels, "[v%d]", i)
		}
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vcat]", labels.String(), nImages))
		videoOut = "[vcat]"
	}

	if hasCTA {
		ctaWidth := evenFloor(float64(p.Width) * 0.4)
		parts = append(parts, fmt.Sprintf("[%d:v]scale=%d:-2[cta]", nImages+1, ctaWidth))
		parts = append(parts, fmt.Sprintf(
			"%s[cta]overlay=x=(W-w)/2:y=H-h-48:enable='%s'[vout]",
			videoOut, ctaEnableExpr(totalDur, p.CTAHeadSec, p.CTATailSec),
		))
	} else {
		parts = append(parts, fmt.Sprintf("%snull[vout]", videoOut))
	}

	return strings.Join(parts, ";")
}
