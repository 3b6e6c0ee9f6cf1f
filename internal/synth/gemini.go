package synth

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	geminiSampleRate = 24000
	geminiChannels   = 1
)

// implements Synthesizer using Gemini native speech output
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiSynthesizer(ctx context.Context, apiKey string, opts Options) (*GeminiSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	voice := opts.Voice
	if voice == "" {
		voice = "Kore"
	}

	return &GeminiSynthesizer{
		client: client,
		model:  model,
		voice:  voice,
	}, nil
}

// returns raw 24kHz mono PCM
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text, language string) (*Audio, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: language,
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: s.voice,
				},
			},
		},
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}

	data, err := inlineAudio(result)
	if err != nil {
		return nil, err
	}

	return &Audio{
		Data:       data,
		Format:     FormatPCM,
		SampleRate: geminiSampleRate,
		Channels:   geminiChannels,
	}, nil
}

// concatenates inline audio parts of every candidate
func inlineAudio(result *genai.GenerateContentResponse) ([]byte, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var data []byte
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil {
				data = append(data, part.InlineData.Data...)
			}
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("no audio in Gemini response")
	}
	return data, nil
}
