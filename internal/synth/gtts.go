package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	googleTranslateTTSURL = "https://translate.google.com/translate_tts"

	// the endpoint rejects longer requests
	maxRequestRunes = 100
)

// implements Synthesizer using the Google Translate speech endpoint
type GoogleTranslateSynthesizer struct {
	client  *http.Client
	baseURL string
}

func NewGoogleTranslateSynthesizer(opts Options) *GoogleTranslateSynthesizer {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = googleTranslateTTSURL
	}
	return &GoogleTranslateSynthesizer{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

func (s *GoogleTranslateSynthesizer) Synthesize(
	ctx context.Context,
	text, language string,
) (*Audio, error) {
	chunks := splitText(text, maxRequestRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	var buf bytes.Buffer
	for i, chunk := range chunks {
		if err := s.fetch(ctx, chunk, language, i, len(chunks), &buf); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("empty audio returned for %q", text)
	}

	return &Audio{Data: buf.Bytes(), Format: FormatMP3}, nil
}

func (s *GoogleTranslateSynthesizer) fetch(
	ctx context.Context,
	chunk, language string,
	idx, total int,
	w io.Writer,
) error {
	query := url.Values{
		"ie":      {"UTF-8"},
		"client":  {"tw-ob"},
		"q":       {chunk},
		"tl":      {language},
		"idx":     {strconv.Itoa(idx)},
		"total":   {strconv.Itoa(total)},
		"textlen": {strconv.Itoa(len([]rune(chunk)))},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return nil
}

// splitText cuts text into pieces of at most limit runes, preferring to
// break after whitespace or punctuation.
func splitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			r := runes[i-1]
			if unicode.IsSpace(r) || unicode.IsPunct(r) {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if piece := strings.TrimSpace(string(runes)); piece != "" {
		chunks = append(chunks, piece)
	}
	return chunks
}
