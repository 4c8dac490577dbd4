package plan

import "fmt"

// ClipKind distinguishes how a clip's audio is obtained.
type ClipKind string

const (
	// ClipSynth clips are produced by text-to-speech synthesis.
	ClipSynth ClipKind = "synth"
	// ClipFetch clips are downloaded from a remote URL.
	ClipFetch ClipKind = "fetch"
)

// ClipSpec is one entry of the expanded, ordered clip list. Index is the
// zero-padded sequence position assigned at expansion time; it, not arrival
// time, determines concatenation order.
type ClipSpec struct {
	Index int
	Kind  ClipKind
	// Label names the clip in filenames and stage reporting.
	Label string
	// Text is the narration to synthesize (ClipSynth only).
	Text string
	// URL is the remote clip location (ClipFetch only).
	URL string
}

// Expand deterministically flattens a plan into its ordered clip list:
// intro, announcement, optional fixed clip, per-segment [external, spoken]
// pairs in plan order, outro. Optional steps with absent content are skipped;
// a segment missing its external audio URL is omitted entirely rather than
// partially included, so an upstream data gap never yields a half pair.
func Expand(p *RenderPlan) []ClipSpec {
	var clips []ClipSpec

	add := func(kind ClipKind, label, text, url string) {
		clips = append(clips, ClipSpec{
			Index: len(clips),
			Kind:  kind,
			Label: label,
			Text:  text,
			URL:   url,
		})
	}

	if p.IntroText != "" {
		add(ClipSynth, "intro", p.IntroText, "")
	}
	if p.SurahAnnouncementText != "" {
		add(ClipSynth, "announce", p.SurahAnnouncementText, "")
	}
	if p.UseFixedClip && p.FixedClipURL != "" {
		add(ClipFetch, "fixed", "", p.FixedClipURL)
	}

	for i, seg := range p.Segments {
		if seg.ExternalAudioURL == "" {
			continue
		}
		key := seg.AyahNumber
		if key == 0 {
			key = i + 1
		}
		// Original-language audio always precedes its paired narration.
		add(ClipFetch, fmt.Sprintf("seg_%d_ar", key), "", seg.ExternalAudioURL)
		add(ClipSynth, fmt.Sprintf("seg_%d_tr", key), seg.SpokenText, "")
	}

	if p.OutroText != "" {
		add(ClipSynth, "outro", p.OutroText, "")
	}

	return clips
}
