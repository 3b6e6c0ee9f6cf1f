package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// single cue
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// complete cue track for one artifact
type Subtitle struct {
	Entries []Entry
	Format  string
}

// supported sidecar formats
type Format string

const (
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatASS  Format = "ass"
	FormatNone Format = "none" // no sidecar is written
)

// validates a configured format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatSRT, FormatVTT, FormatASS, FormatNone:
		return f, nil
	case "":
		return FormatNone, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %q", s)
	}
}

// interface for writing subtitles to files
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}
