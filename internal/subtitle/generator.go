package subtitle

import (
	"strings"

	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/timeline"
)

// FromTimeline emits one cue per speech entry, spanning exactly the
// entry's position on the woven track. Silence entries produce no cue.
func FromTimeline(tl *timeline.Timeline, pairs []sentence.Pair, format Format) *Subtitle {
	sub := &Subtitle{
		Entries: []Entry{},
		Format:  string(format),
	}
	if tl == nil {
		return sub
	}

	for _, e := range tl.Entries {
		seg := e.Segment
		if !seg.IsSpeech() || seg.PairIndex < 0 || seg.PairIndex >= len(pairs) {
			continue
		}

		text := strings.TrimSpace(pairs[seg.PairIndex].Text(seg.Language))
		if text == "" {
			continue
		}

		sub.Entries = append(sub.Entries, Entry{
			Index:     len(sub.Entries) + 1,
			StartTime: e.Start,
			EndTime:   e.Start + e.Duration,
			Text:      text,
		})
	}
	return sub
}
