package plan

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MinimalPlanGetsDefaults(t *testing.T) {
	v := validator.New()
	p, err := Parse([]byte(`{"introText":"welcome"}`), v)
	require.NoError(t, err)

	assert.Equal(t, "welcome", p.IntroText)
	assert.Equal(t, DefaultEffects(), p.Effects)
}

func TestParse_EffectOverridesKept(t *testing.T) {
	v := validator.New()
	p, err := Parse([]byte(`{"effects":{"fps":30,"width":1920,"height":1080}}`), v)
	require.NoError(t, err)

	assert.Equal(t, 30, p.Effects.FPS)
	assert.Equal(t, 1920, p.Effects.Width)
	assert.Equal(t, 1080, p.Effects.Height)
	// Unset fields still take defaults.
	assert.Equal(t, 1.08, p.Effects.ZoomBase)
	assert.Equal(t, "2500k", p.Effects.VideoBitrate)
}

func TestParse_InvalidJSON(t *testing.T) {
	v := validator.New()
	_, err := Parse([]byte(`{not json`), v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParse_InvalidSegmentURL(t *testing.T) {
	v := validator.New()
	_, err := Parse([]byte(`{"segments":[{"externalAudioUrl":"not-a-url"}]}`), v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestParse_InvalidEffectRange(t *testing.T) {
	v := validator.New()
	_, err := Parse([]byte(`{"effects":{"fps":500}}`), v)
	require.Error(t, err)
}

func TestExpand_FullPlanOrder(t *testing.T) {
	p := &RenderPlan{
		IntroText:             "intro line",
		SurahAnnouncementText: "announcement line",
		OutroText:             "outro line",
		UseFixedClip:          true,
		FixedClipURL:          "https://cdn.example.com/fixed.mp3",
		Segments: []Segment{
			{ExternalAudioURL: "https://cdn.example.com/1.mp3", SpokenText: "first", AyahNumber: 1},
			{ExternalAudioURL: "https://cdn.example.com/2.mp3", SpokenText: "second", AyahNumber: 2},
		},
	}

	clips := Expand(p)
	require.Len(t, clips, 8)

	wantLabels := []string{"intro", "announce", "fixed", "seg_1_ar", "seg_1_tr", "seg_2_ar", "seg_2_tr", "outro"}
	for i, want := range wantLabels {
		assert.Equal(t, want, clips[i].Label)
		assert.Equal(t, i, clips[i].Index)
	}

	assert.Equal(t, ClipSynth, clips[0].Kind)
	assert.Equal(t, ClipFetch, clips[2].Kind)
	assert.Equal(t, ClipFetch, clips[3].Kind)
	assert.Equal(t, ClipSynth, clips[4].Kind)
	assert.Equal(t, "first", clips[4].Text)
}

func TestExpand_Deterministic(t *testing.T) {
	p := &RenderPlan{
		IntroText: "a",
		Segments: []Segment{
			{ExternalAudioURL: "https://x.example/1.mp3", SpokenText: "one", AyahNumber: 1},
			{ExternalAudioURL: "https://x.example/2.mp3", SpokenText: "two", AyahNumber: 2},
			{ExternalAudioURL: "https://x.example/3.mp3", SpokenText: "three", AyahNumber: 3},
		},
		OutroText: "z",
	}

	first := Expand(p)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Expand(p))
	}
}

func TestExpand_SegmentWithoutURLOmittedEntirely(t *testing.T) {
	p := &RenderPlan{
		Segments: []Segment{
			{ExternalAudioURL: "https://x.example/1.mp3", SpokenText: "kept", AyahNumber: 1},
			{SpokenText: "dropped, no audio", AyahNumber: 2},
			{ExternalAudioURL: "https://x.example/3.mp3", SpokenText: "kept too", AyahNumber: 3},
		},
	}

	clips := Expand(p)
	require.Len(t, clips, 4)

	for _, c := range clips {
		assert.NotContains(t, c.Label, "seg_2", "segment without audio must be fully omitted")
	}
	// Indices stay contiguous after the omission.
	for i, c := range clips {
		assert.Equal(t, i, c.Index)
	}
}

func TestExpand_EmptySpokenTextStillPaired(t *testing.T) {
	p := &RenderPlan{
		Segments: []Segment{
			{ExternalAudioURL: "https://x.example/1.mp3", AyahNumber: 1},
		},
	}

	clips := Expand(p)
	require.Len(t, clips, 2)
	assert.Equal(t, "seg_1_ar", clips[0].Label)
	assert.Equal(t, "seg_1_tr", clips[1].Label)
	assert.Equal(t, "", clips[1].Text)
}

func TestExpand_PositionFallbackKey(t *testing.T) {
	p := &RenderPlan{
		Segments: []Segment{
			{ExternalAudioURL: "https://x.example/a.mp3"},
			{ExternalAudioURL: "https://x.example/b.mp3"},
		},
	}

	clips := Expand(p)
	require.Len(t, clips, 4)
	assert.True(t, strings.HasPrefix(clips[0].Label, "seg_1_"))
	assert.True(t, strings.HasPrefix(clips[2].Label, "seg_2_"))
}

func TestExpand_FixedClipRequiresBothFlagAndURL(t *testing.T) {
	withFlagOnly := &RenderPlan{UseFixedClip: true}
	assert.Empty(t, Expand(withFlagOnly))

	withURLOnly := &RenderPlan{FixedClipURL: "https://x.example/fixed.mp3"}
	assert.Empty(t, Expand(withURLOnly))
}

func TestExpand_EmptyPlan(t *testing.T) {
	assert.Empty(t, Expand(&RenderPlan{}))
}
