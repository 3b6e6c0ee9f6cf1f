package layout

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// morphological tokenizer for Japanese backed by kagome and the IPA dictionary
type KagomeTokenizer struct {
	t *tokenizer.Tokenizer
}

func NewKagomeTokenizer() (*KagomeTokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to create kagome tokenizer: %w", err)
	}
	return &KagomeTokenizer{t: t}, nil
}

// Tokenize returns token surfaces in order.
func (k *KagomeTokenizer) Tokenize(text string) []string {
	tokens := k.t.Tokenize(text)
	surfaces := make([]string, 0, len(tokens))
	for _, token := range tokens {
		surfaces = append(surfaces, token.Surface)
	}
	return surfaces
}
