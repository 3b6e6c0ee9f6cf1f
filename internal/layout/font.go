package layout

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"github.com/mgpai22/drillcast/internal/logging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// settings used to build an Engine
type Options struct {
	FontPath          string
	FallbackFontPaths []string
	FontSize          float64
	Width             int
	Height            int
	Padding           int
	Background        string
	TextColor         string
	SourcePolicy      Policy
	TargetPolicy      Policy
}

// defaults for a 720p drill video
func DefaultOptions() Options {
	return Options{
		FontPath: "/usr/share/fonts/truetype/fonts-japanese-gothic.ttf",
		FallbackFontPaths: []string{
			"/usr/share/fonts/opentype/ipafont-gothic/ipag.ttf",
			"/usr/share/fonts/opentype/noto/NotoSansCJKjp-Regular.otf",
		},
		FontSize:     45,
		Width:        1280,
		Height:       720,
		Padding:      50,
		Background:   "#000000",
		TextColor:    "#FFFFFF",
		SourcePolicy: PolicyTokens,
		TargetPolicy: PolicySpaces,
	}
}

// glyph advances from a loaded face
type faceMetrics struct {
	face font.Face
}

func (m faceMetrics) Width(s string) float64 {
	return float64(font.MeasureString(m.face, s)) / 64
}

// NewEngine loads the first usable font from opts and records which
// capabilities are available. tokenizer may be nil.
func NewEngine(opts Options, tokenizer Tokenizer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg := Config{
		FontSize:     opts.FontSize,
		Width:        opts.Width,
		Height:       opts.Height,
		Padding:      opts.Padding,
		Background:   opts.Background,
		TextColor:    opts.TextColor,
		SourcePolicy: opts.SourcePolicy,
		TargetPolicy: opts.TargetPolicy,
	}

	candidates := append([]string{opts.FontPath}, opts.FallbackFontPaths...)
	face, path, err := loadFace(candidates, opts.FontSize)

	var metrics Metrics
	if err != nil {
		logger.Warnw("No usable font found, text width will be estimated",
			"candidates", candidates,
			"error", err,
		)
		face = basicfont.Face7x13
	} else {
		cfg.FontPath = path
		metrics = faceMetrics{face: face}
		logger.Debugw("Loaded font", "path", path, "size", opts.FontSize)
	}

	if tokenizer == nil {
		logger.Warnw("Tokenizer unavailable, no-space text will wrap by character count")
	}

	return newEngine(cfg, face, metrics, tokenizer, logger)
}

func loadFace(paths []string, size float64) (font.Face, string, error) {
	if size <= 0 {
		return nil, "", fmt.Errorf("invalid font size %v", size)
	}

	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed, err := truetype.Parse(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", path, err))
			continue
		}
		return truetype.NewFace(parsed, &truetype.Options{Size: size}), path, nil
	}

	if len(errs) == 0 {
		return nil, "", errors.New("no font paths configured")
	}
	return nil, "", errors.Join(errs...)
}
