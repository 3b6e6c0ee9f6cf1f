package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// Advanced SubStation Alpha format
type ASSWriter struct {
	Title     string
	FontName  string
	FontSize  int
	TextColor string // #RRGGBB
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{
			Title:     "Drillcast Lesson",
			FontName:  "Noto Sans CJK JP",
			FontSize:  24,
			TextColor: "#FFFFFF",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// writes sub next to artifact, e.g. out.mp3 -> out.srt; returns the path
func WriteSidecar(sub *Subtitle, artifact string, format Format) (string, error) {
	w, err := NewWriter(format)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(artifact, filepath.Ext(artifact)) + GetExtensionForFormat(format)
	if err := w.Write(sub, path); err != nil {
		return "", fmt.Errorf("failed to write subtitles: %w", err)
	}
	return path, nil
}

// numbered cue blocks shared by SRT and VTT; only the header and the
// millisecond separator differ
func writeCues(sub *Subtitle, path, header string, sep byte) error {
	var sb strings.Builder
	sb.WriteString(header)
	for i, entry := range sub.Entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1,
			clock(entry.StartTime, sep, 3),
			clock(entry.EndTime, sep, 3),
			entry.Text)
	}
	return writeFile(path, sb.String())
}

func (w *SRTWriter) Write(sub *Subtitle, path string) error {
	return writeCues(sub, path, "", ',')
}

func (w *VTTWriter) Write(sub *Subtitle, path string) error {
	return writeCues(sub, path, "WEBVTT\n\n", '.')
}

func (w *ASSWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	fmt.Fprintf(&sb, "Title: %s\n", w.Title)
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("Collisions: Normal\n")
	sb.WriteString("PlayDepth: 0\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		w.FontName, w.FontSize, assColor(w.TextColor))

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, entry := range sub.Entries {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			strings.TrimPrefix(clock(entry.StartTime, '.', 2), "0"),
			strings.TrimPrefix(clock(entry.EndTime, '.', 2), "0"),
			strings.ReplaceAll(entry.Text, "\n", `\N`))
	}

	return writeFile(path, sb.String())
}

// hh:mm:ss<sep>fraction with the given number of fractional digits
func clock(d time.Duration, sep byte, digits int) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	frac := ms % 1000
	if digits == 2 {
		frac /= 10
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%0*d",
		ms/3_600_000, ms/60_000%60, ms/1000%60, sep, digits, frac)
}

// #RRGGBB to ASS &H00BBGGRR; unparseable colours become white
func assColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "&H00FFFFFF"
	}
	hex = strings.ToUpper(hex)
	return "&H00" + hex[4:6] + hex[2:4] + hex[0:2]
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}
