package layout

import (
	"strings"
	"testing"
)

func TestKagomeTokenizerRoundTrip(t *testing.T) {
	tok, err := NewKagomeTokenizer()
	if err != nil {
		t.Skipf("kagome unavailable: %v", err)
	}

	for _, text := range []string{"これはペンです", "私は学生です。", "東京に行きました"} {
		tokens := tok.Tokenize(text)
		if len(tokens) < 2 {
			t.Errorf("Tokenize(%q) = %q, expected several tokens", text, tokens)
		}
		if got := strings.Join(tokens, ""); got != text {
			t.Errorf("joined tokens = %q, want %q", got, text)
		}
	}
}

func TestKagomeWrapKeepsTokensWhole(t *testing.T) {
	tok, err := NewKagomeTokenizer()
	if err != nil {
		t.Skipf("kagome unavailable: %v", err)
	}
	e := newEngine(testConfig(), nil, runeMetrics{}, tok, nil)

	lines := e.Wrap("私は学生です", 20, PolicyTokens)
	if strings.Join(lines, "") != "私は学生です" {
		t.Errorf("round trip lost text: %q", lines)
	}
	for _, line := range lines {
		if line == "学" || line == "生" {
			t.Errorf("token 学生 was split: %q", lines)
		}
	}
}
