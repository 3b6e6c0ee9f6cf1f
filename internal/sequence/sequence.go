// Package sequence lays out the drill order of a run: which pair is spoken,
// in which language, how many times, and where the silences fall. It does
// no I/O; binding segments to media happens in package timeline.
package sequence

import (
	"fmt"
	"time"

	"github.com/mgpai22/drillcast/internal/sentence"
)

// Kind distinguishes speech from silence.
type Kind int

const (
	KindSpeech Kind = iota
	KindSilence
)

// SilenceKind names the gap a silence segment fills.
type SilenceKind int

const (
	InterRepetition SilenceKind = iota
	InterLanguage
	InterEntry
)

func (k SilenceKind) String() string {
	switch k {
	case InterRepetition:
		return "inter-repetition"
	case InterLanguage:
		return "inter-language"
	case InterEntry:
		return "inter-entry"
	default:
		return fmt.Sprintf("silence(%d)", int(k))
	}
}

// atomic timeline unit
type Segment struct {
	Kind      Kind
	PairIndex int

	// speech only; Repetition is 1-based
	Language   sentence.Language
	Repetition int

	// silence only
	Silence  SilenceKind
	Duration time.Duration
}

// Speech builds a speech segment.
func Speech(pairIndex int, lang sentence.Language, repetition int) Segment {
	return Segment{
		Kind:       KindSpeech,
		PairIndex:  pairIndex,
		Language:   lang,
		Repetition: repetition,
	}
}

// Silence builds a silence segment owned by a pair.
func Silence(pairIndex int, kind SilenceKind, d time.Duration) Segment {
	return Segment{
		Kind:      KindSilence,
		PairIndex: pairIndex,
		Silence:   kind,
		Duration:  d,
	}
}

// IsSpeech reports whether the segment plays synthesized speech.
func (s Segment) IsSpeech() bool {
	return s.Kind == KindSpeech
}

func (s Segment) String() string {
	if s.IsSpeech() {
		return fmt.Sprintf("Speech(%d, %s, %d)", s.PairIndex, s.Language, s.Repetition)
	}
	return fmt.Sprintf("Silence(%s, %s)", s.Duration, s.Silence)
}

// silence lengths for one track
type Pauses struct {
	InterRepetition time.Duration `mapstructure:"inter_repetition"`
	InterLanguage   time.Duration `mapstructure:"inter_language"`
	InterEntry      time.Duration `mapstructure:"inter_entry"`
}

// AudioPauses are the gaps used by the audio-only track.
func AudioPauses() Pauses {
	return Pauses{
		InterRepetition: 800 * time.Millisecond,
		InterLanguage:   600 * time.Millisecond,
		InterEntry:      2000 * time.Millisecond,
	}
}

// VideoPauses are the gaps used by the video track.
func VideoPauses() Pauses {
	return Pauses{
		InterRepetition: 900 * time.Millisecond,
		InterLanguage:   700 * time.Millisecond,
		InterEntry:      2500 * time.Millisecond,
	}
}

// Validate rejects negative durations.
func (p Pauses) Validate() error {
	if p.InterRepetition < 0 || p.InterLanguage < 0 || p.InterEntry < 0 {
		return fmt.Errorf("pause durations must not be negative: %+v", p)
	}
	return nil
}

// Sequence returns the canonical segment order for pairs under plan.
//
// Per pair: each source repetition followed by an inter-repetition gap,
// one inter-language gap, each target repetition followed by an
// inter-repetition gap, and an inter-entry gap unless the pair is last.
// An empty pairs slice yields an empty sequence.
func Sequence(pairs []sentence.Pair, plan sentence.Plan, pauses Pauses) []Segment {
	if len(pairs) == 0 {
		return nil
	}

	segments := make([]Segment, 0, Count(len(pairs), plan))
	for i := range pairs {
		for r := 1; r <= plan.SourceReps; r++ {
			segments = append(segments,
				Speech(i, sentence.Source, r),
				Silence(i, InterRepetition, pauses.InterRepetition),
			)
		}
		segments = append(segments, Silence(i, InterLanguage, pauses.InterLanguage))
		for r := 1; r <= plan.TargetReps; r++ {
			segments = append(segments,
				Speech(i, sentence.Target, r),
				Silence(i, InterRepetition, pauses.InterRepetition),
			)
		}
		if i < len(pairs)-1 {
			segments = append(segments, Silence(i, InterEntry, pauses.InterEntry))
		}
	}
	return segments
}

// Count is the number of segments Sequence emits for n pairs.
func Count(n int, plan sentence.Plan) int {
	if n <= 0 {
		return 0
	}
	perPair := 2*plan.SourceReps + 1 + 2*plan.TargetReps
	return n*perPair + (n - 1)
}

// SilenceTotal sums the fixed-length gaps of a sequence.
func SilenceTotal(segments []Segment) time.Duration {
	var total time.Duration
	for _, s := range segments {
		if !s.IsSpeech() {
			total += s.Duration
		}
	}
	return total
}
