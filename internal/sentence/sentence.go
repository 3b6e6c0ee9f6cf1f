package sentence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// bilingual sentence pair; both sides are non-empty after Cleanup
type Pair struct {
	Source string
	Target string
}

// Language selects one side of a Pair.
type Language string

const (
	Source Language = "source"
	Target Language = "target"
)

// Text returns the side of the pair spoken in lang.
func (p Pair) Text(lang Language) string {
	if lang == Target {
		return p.Target
	}
	return p.Source
}

// per-language replay counts for one run
type Plan struct {
	SourceReps int
	TargetReps int
}

// Reps returns the replay count for lang.
func (p Plan) Reps(lang Language) int {
	if lang == Target {
		return p.TargetReps
	}
	return p.SourceReps
}

var ErrInvalidRepetitions = errors.New("repetition counts must be at least 1")

// Validate reports an error unless both counts are >= 1.
func (p Plan) Validate() error {
	if p.SourceReps < 1 || p.TargetReps < 1 {
		return fmt.Errorf("%w (source=%d, target=%d)", ErrInvalidRepetitions, p.SourceReps, p.TargetReps)
	}
	return nil
}

var (
	bracketChars = regexp.MustCompile(`[()\[\]{}]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// strips bracket characters and collapses whitespace
func Cleanup(text string) string {
	text = bracketChars.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ParseLine splits one "<source>,<target>" line on its first comma.
// ok is false when either normalised side is empty or there is no comma.
func ParseLine(line string) (Pair, bool) {
	source, target, found := strings.Cut(line, ",")
	if !found {
		return Pair{}, false
	}
	pair := Pair{
		Source: Cleanup(source),
		Target: Cleanup(target),
	}
	if pair.Source == "" || pair.Target == "" {
		return Pair{}, false
	}
	return pair, true
}

// ParseLines parses every line of input, discarding malformed ones.
func ParseLines(input string) []Pair {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	var pairs []Pair
	for _, line := range strings.Split(input, "\n") {
		if pair, ok := ParseLine(line); ok {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}
