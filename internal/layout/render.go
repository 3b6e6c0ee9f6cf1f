package layout

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fogleman/gg"
	"github.com/mgpai22/drillcast/internal/sentence"
)

const lineSpacing = 1.2

// wrapped lines for one pair's still image
type Frame struct {
	SourceLines []string
	TargetLines []string
}

// Frame wraps both sides of pair to the drawable width.
func (e *Engine) Frame(pair sentence.Pair) Frame {
	width := e.DrawableWidth()
	return Frame{
		SourceLines: e.Wrap(pair.Source, width, e.cfg.SourcePolicy),
		TargetLines: e.Wrap(pair.Target, width, e.cfg.TargetPolicy),
	}
}

// Render draws frame: source lines in the upper band, target lines in the lower.
func (e *Engine) Render(frame Frame) image.Image {
	dc := gg.NewContext(e.cfg.Width, e.cfg.Height)
	dc.SetHexColor(e.cfg.Background)
	dc.Clear()

	dc.SetFontFace(e.face)
	dc.SetHexColor(e.cfg.TextColor)

	x := float64(e.cfg.Padding)
	e.drawLines(dc, frame.SourceLines, x, float64(e.cfg.Padding))
	e.drawLines(dc, frame.TargetLines, x, float64(e.cfg.Height/2+e.cfg.Padding/2))

	return dc.Image()
}

// lines hang from y, left aligned at x
func (e *Engine) drawLines(dc *gg.Context, lines []string, x, y float64) {
	lineHeight := dc.FontHeight() * lineSpacing
	for _, line := range lines {
		if s := visibleLine(line); s != "" {
			dc.DrawStringAnchored(s, x, y, 0, 1)
		}
		y += lineHeight
	}
}

// visibleLine drops the whitespace a token wrap can carry onto the start
// of a continuation line, so every line sits flush with the margin.
func visibleLine(line string) string {
	return strings.TrimLeftFunc(line, unicode.IsSpace)
}

// RenderFrame lays out pair and writes the frame as a PNG to path.
func (e *Engine) RenderFrame(pair sentence.Pair, path string) (Frame, error) {
	frame := e.Frame(pair)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return frame, fmt.Errorf("failed to create frame directory: %w", err)
	}
	if err := gg.SavePNG(path, e.Render(frame)); err != nil {
		return frame, fmt.Errorf("failed to write frame %s: %w", path, err)
	}
	return frame, nil
}
