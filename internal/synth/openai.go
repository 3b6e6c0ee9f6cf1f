package synth

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Synthesizer using the OpenAI speech endpoint
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = string(openai.SpeechModelGPT4oMiniTTS)
	}
	voice := opts.Voice
	if voice == "" {
		voice = "alloy"
	}

	return &OpenAISynthesizer{
		client: client,
		model:  model,
		voice:  voice,
	}, nil
}

// the model infers the spoken language from the text itself
func (s *OpenAISynthesizer) Synthesize(
	ctx context.Context,
	text, language string,
) (*Audio, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio in OpenAI response")
	}

	return &Audio{Data: data, Format: FormatMP3}, nil
}
