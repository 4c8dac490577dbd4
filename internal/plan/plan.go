// Package plan defines the RenderPlan input document and its deterministic
// expansion into an ordered clip list. Plan order is authoritative for clip
// ordering; the per-segment ayah number is used only for filenames and logs.
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Segment is one paired unit of external audio plus synthesized narration.
type Segment struct {
	// ExternalAudioURL points at the pre-recorded clip for this segment.
	// A segment without it is omitted entirely, both halves.
	ExternalAudioURL string `json:"externalAudioUrl" validate:"omitempty,url"`
	// SpokenText is the vernacular narration synthesized after the external
	// clip. Empty text is synthesized as a placeholder, not an error.
	SpokenText string `json:"spokenText"`
	// AyahNumber is an order key used for filenames and logging only.
	AyahNumber int `json:"ayahNumber"`
}

// Effects holds the visual and audio effect overrides; zero values take the
// fixed defaults from DefaultEffects.
type Effects struct {
	ZoomBase      float64 `json:"zoomBase" validate:"omitempty,gte=1"`
	ZoomAmplitude float64 `json:"zoomAmplitude" validate:"omitempty,gt=0,lt=1"`
	ZoomPeriodSec float64 `json:"zoomPeriodSec" validate:"omitempty,gt=0"`
	FPS           int     `json:"fps" validate:"omitempty,min=1,max=60"`
	Width         int     `json:"width" validate:"omitempty,min=16,max=4096"`
	Height        int     `json:"height" validate:"omitempty,min=16,max=4096"`
	VideoBitrate  string  `json:"videoBitrate"`
	Overscan      float64 `json:"overscan" validate:"omitempty,gt=1,lte=2"`
	CTAHeadSec    float64 `json:"ctaHeadSec" validate:"omitempty,gte=0"`
	CTATailSec    float64 `json:"ctaTailSec" validate:"omitempty,gte=0"`
}

// DefaultEffects returns the fixed effect constants used when the plan does
// not override them.
func DefaultEffects() Effects {
	return Effects{
		ZoomBase:      1.08,
		ZoomAmplitude: 0.04,
		ZoomPeriodSec: 10,
		FPS:           25,
		Width:         1280,
		Height:        720,
		VideoBitrate:  "2500k",
		Overscan:      1.12,
		CTAHeadSec:    5,
		CTATailSec:    8,
	}
}

// RenderPlan is the structured description of what a job should render.
type RenderPlan struct {
	IntroText             string    `json:"introText"`
	SurahAnnouncementText string    `json:"surahAnnouncementText"`
	OutroText             string    `json:"outroText"`
	UseFixedClip          bool      `json:"useFixedClip"`
	FixedClipURL          string    `json:"fixedClipUrl" validate:"omitempty,url"`
	Segments              []Segment `json:"segments" validate:"dive"`
	Effects               Effects   `json:"effects"`
}

// Parse decodes a JSON-encoded plan, applies effect defaults and validates it.
func Parse(data []byte, v *validator.Validate) (*RenderPlan, error) {
	var p RenderPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: invalid JSON: %w", err)
	}

	p.Effects = p.Effects.withDefaults()

	if err := v.Struct(&p); err != nil {
		return nil, fmt.Errorf("plan: validation failed: %w", err)
	}

	return &p, nil
}

// withDefaults fills zero-valued effect parameters with the fixed constants.
func (e Effects) withDefaults() Effects {
	d := DefaultEffects()
	if e.ZoomBase == 0 {
		e.ZoomBase = d.ZoomBase
	}
	if e.ZoomAmplitude == 0 {
		e.ZoomAmplitude = d.ZoomAmplitude
	}
	if e.ZoomPeriodSec == 0 {
		e.ZoomPeriodSec = d.ZoomPeriodSec
	}
	if e.FPS == 0 {
		e.FPS = d.FPS
	}
	if e.Width == 0 {
		e.Width = d.Width
	}
	if e.Height == 0 {
		e.Height = d.Height
	}
	if e.VideoBitrate == "" {
		e.VideoBitrate = d.VideoBitrate
	}
	if e.Overscan == 0 {
		e.Overscan = d.Overscan
	}
	if e.CTAHeadSec == 0 {
		e.CTAHeadSec = d.CTAHeadSec
	}
	if e.CTATailSec == 0 {
		e.CTATailSec = d.CTATailSec
	}
	return e
}
