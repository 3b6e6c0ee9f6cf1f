// Package layout wraps bilingual text into the lines shown on a drill frame
// and rasterises those lines onto a still image.
//
// Two policies exist. PolicyTokens accumulates morphological tokens and is
// used for scripts written without spaces. PolicySpaces accumulates words
// split on single spaces. Both measure real glyph advances when a font is
// loaded and fall back to a character-count estimate when no measurement
// (or, for PolicyTokens, no tokenizer) is available. Which path is taken is
// decided once, when the Engine is built.
package layout

import (
	"strings"

	"github.com/mgpai22/drillcast/internal/logging"
	"golang.org/x/image/font"
)

// Policy selects the wrapping strategy for one language.
type Policy int

const (
	PolicyTokens Policy = iota
	PolicySpaces
)

func (p Policy) String() string {
	if p == PolicyTokens {
		return "tokens"
	}
	return "spaces"
}

// pixel width of a rendered string
type Metrics interface {
	Width(s string) float64
}

// splits a line into minimal lexical units whose concatenation is the line
type Tokenizer interface {
	Tokenize(text string) []string
}

const (
	// estimated glyph width as a share of the font size
	tokenCharFactor = 0.9
	spaceCharFactor = 0.6

	defaultTokenCharWidth = 16.0
	defaultSpaceCharWidth = 10.0
)

// Config is the layout state fixed at start-up. Engine hands out copies.
type Config struct {
	FontPath     string // empty when the built-in bitmap face is used
	FontSize     float64
	Width        int
	Height       int
	Padding      int
	Background   string
	TextColor    string
	SourcePolicy Policy
	TargetPolicy Policy

	CanMeasure  bool
	CanTokenize bool
}

// Engine is not safe for concurrent use; font faces keep glyph caches.
type Engine struct {
	cfg       Config
	face      font.Face
	metrics   Metrics
	tokenizer Tokenizer
	logger    *logging.Logger
}

func newEngine(cfg Config, face font.Face, metrics Metrics, tokenizer Tokenizer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.CanMeasure = metrics != nil
	cfg.CanTokenize = tokenizer != nil
	return &Engine{
		cfg:       cfg,
		face:      face,
		metrics:   metrics,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// DrawableWidth is the canvas width minus horizontal padding.
func (e *Engine) DrawableWidth() float64 {
	return float64(e.cfg.Width - 2*e.cfg.Padding)
}

// Wrap splits text into lines no wider than maxWidth under policy.
// Blank input yields a single empty line. Tokens are never split, so an
// over-wide token occupies a line by itself.
func (e *Engine) Wrap(text string, maxWidth float64, policy Policy) []string {
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}

	switch {
	case policy == PolicyTokens && e.metrics != nil && e.tokenizer != nil:
		return e.guarded(text, func() []string {
			return wrapTokens(text, maxWidth, e.tokenizer.Tokenize, e.metrics.Width)
		})
	case policy == PolicySpaces && e.metrics != nil:
		return e.guarded(text, func() []string {
			return wrapWords(text, maxWidth, e.metrics.Width)
		})
	case policy == PolicyTokens:
		return wrapChars(text, charsPerLine(maxWidth, e.cfg.FontSize, tokenCharFactor, defaultTokenCharWidth))
	default:
		return wrapWordCount(text, charsPerLine(maxWidth, e.cfg.FontSize, spaceCharFactor, defaultSpaceCharWidth))
	}
}

// a fault inside a collaborator degrades to the unwrapped text
func (e *Engine) guarded(text string, wrap func() []string) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warnw("Line wrapping failed, keeping text unwrapped",
				"text", text,
				"panic", r,
			)
			lines = []string{text}
		}
	}()
	return wrap()
}

func wrapTokens(text string, maxWidth float64, tokenize func(string) []string, width func(string) float64) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			lines = append(lines, "")
			continue
		}

		var current strings.Builder
		currentWidth := 0.0
		for _, token := range tokenize(line) {
			if token == "" {
				continue
			}
			w := width(token)
			if current.Len() > 0 && currentWidth+w > maxWidth {
				lines = append(lines, current.String())
				current.Reset()
				currentWidth = 0
			}
			current.WriteString(token)
			currentWidth += w
		}
		if current.Len() > 0 {
			lines = append(lines, current.String())
		}
	}
	return lines
}

func wrapWords(text string, maxWidth float64, width func(string) float64) []string {
	spaceWidth := width(" ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			lines = append(lines, "")
			continue
		}

		current := ""
		currentWidth := 0.0
		for _, word := range strings.Split(line, " ") {
			if word == "" {
				continue
			}
			w := width(word)
			switch {
			case current == "":
				current, currentWidth = word, w
			case currentWidth+spaceWidth+w <= maxWidth:
				current += " " + word
				currentWidth += spaceWidth + w
			default:
				lines = append(lines, current)
				current, currentWidth = word, w
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

func charsPerLine(maxWidth, fontSize, factor, fallback float64) int {
	estimated := fallback
	if fontSize > 0 {
		estimated = fontSize * factor
	}
	n := int(maxWidth / estimated)
	if n < 1 {
		return 1
	}
	return n
}

func wrapChars(text string, maxChars int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			lines = append(lines, "")
			continue
		}

		runes := []rune(line)
		for start := 0; start < len(runes); start += maxChars {
			end := min(start+maxChars, len(runes))
			lines = append(lines, string(runes[start:end]))
		}
	}
	return lines
}

func wrapWordCount(text string, maxChars int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range strings.Split(line, " ") {
			if word == "" {
				continue
			}
			switch {
			case current == "":
				current = word
			case len([]rune(current))+1+len([]rune(word)) <= maxChars:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}
