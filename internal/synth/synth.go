package synth

import (
	"context"
	"fmt"
)

// encoding of synthesized bytes
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatPCM Format = "s16le" // raw signed 16-bit little endian
)

// synthesized speech for one text
type Audio struct {
	Data       []byte
	Format     Format
	SampleRate int // PCM only
	Channels   int // PCM only
}

// file extension for the audio's format
func (a *Audio) Extension() string {
	if a.Format == FormatPCM {
		return ".pcm"
	}
	return "." + string(a.Format)
}

// interface for text to speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) (*Audio, error)
}

// speech synthesis provider
type Provider string

const (
	ProviderGoogleTranslate Provider = "gtts"
	ProviderOpenAI          Provider = "openai"
	ProviderGemini          Provider = "gemini"
)

// synthesis options
type Options struct {
	Model   string
	Voice   string
	BaseURL string // overrides the provider endpoint
}

// creates Synthesizer based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Synthesizer, error) {
	switch provider {
	case ProviderGoogleTranslate, "":
		return NewGoogleTranslateSynthesizer(opts), nil
	case ProviderOpenAI:
		return NewOpenAISynthesizer(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiSynthesizer(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported synthesis provider: %s", provider)
	}
}
