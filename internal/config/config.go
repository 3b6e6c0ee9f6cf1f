// Package config loads drillcast settings from defaults, an optional YAML
// file, DRILLCAST_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/mgpai22/drillcast/internal/layout"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/sequence"
	"github.com/mgpai22/drillcast/internal/subtitle"
	"github.com/mgpai22/drillcast/internal/synth"
)

const (
	EnvPrefix       = "DRILLCAST"
	DefaultFileName = "drillcast"
)

type Synthesis struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	Voice       string `mapstructure:"voice"`
	BaseURL     string `mapstructure:"base_url"`
	Concurrency int    `mapstructure:"concurrency"`
}

type Layout struct {
	FontPath          string   `mapstructure:"font_path"`
	FallbackFontPaths []string `mapstructure:"fallback_font_paths"`
	FontSize          float64  `mapstructure:"font_size"`
	Width             int      `mapstructure:"width"`
	Height            int      `mapstructure:"height"`
	Padding           int      `mapstructure:"padding"`
	Background        string   `mapstructure:"background"`
	TextColor         string   `mapstructure:"text_color"`
	FPS               int      `mapstructure:"fps"`
}

type Pauses struct {
	Audio sequence.Pauses `mapstructure:"audio"`
	Video sequence.Pauses `mapstructure:"video"`
}

type Config struct {
	SourceLanguage string `mapstructure:"source_language"`
	TargetLanguage string `mapstructure:"target_language"`
	SourceReps     int    `mapstructure:"source_reps"`
	TargetReps     int    `mapstructure:"target_reps"`

	Audio bool `mapstructure:"audio"`
	Video bool `mapstructure:"video"`

	OutputDir      string `mapstructure:"output_dir"`
	ScratchDir     string `mapstructure:"scratch_dir"`
	SubtitleFormat string `mapstructure:"subtitle_format"`

	Synthesis       Synthesis     `mapstructure:"synthesis"`
	Layout          Layout        `mapstructure:"layout"`
	Pauses          Pauses        `mapstructure:"pauses"`
	FallbackSilence time.Duration `mapstructure:"fallback_silence"`
}

func setDefaults(v *viper.Viper) {
	lo := layout.DefaultOptions()
	ap, vp := sequence.AudioPauses(), sequence.VideoPauses()

	v.SetDefault("source_language", "ja")
	v.SetDefault("target_language", "en")
	v.SetDefault("source_reps", 1)
	v.SetDefault("target_reps", 3)
	v.SetDefault("audio", true)
	v.SetDefault("video", true)
	v.SetDefault("output_dir", ".")
	v.SetDefault("scratch_dir", os.TempDir())
	v.SetDefault("subtitle_format", string(subtitle.FormatSRT))

	v.SetDefault("synthesis.provider", string(synth.ProviderGoogleTranslate))
	v.SetDefault("synthesis.api_key", "")
	v.SetDefault("synthesis.model", "")
	v.SetDefault("synthesis.voice", "")
	v.SetDefault("synthesis.base_url", "")
	v.SetDefault("synthesis.concurrency", 1)

	v.SetDefault("layout.font_path", lo.FontPath)
	v.SetDefault("layout.fallback_font_paths", lo.FallbackFontPaths)
	v.SetDefault("layout.font_size", lo.FontSize)
	v.SetDefault("layout.width", lo.Width)
	v.SetDefault("layout.height", lo.Height)
	v.SetDefault("layout.padding", lo.Padding)
	v.SetDefault("layout.background", lo.Background)
	v.SetDefault("layout.text_color", lo.TextColor)
	v.SetDefault("layout.fps", 10)

	v.SetDefault("pauses.audio.inter_repetition", ap.InterRepetition)
	v.SetDefault("pauses.audio.inter_language", ap.InterLanguage)
	v.SetDefault("pauses.audio.inter_entry", ap.InterEntry)
	v.SetDefault("pauses.video.inter_repetition", vp.InterRepetition)
	v.SetDefault("pauses.video.inter_language", vp.InterLanguage)
	v.SetDefault("pauses.video.inter_entry", vp.InterEntry)
	v.SetDefault("fallback_silence", 500*time.Millisecond)
}

// Load reads configuration. cfgFile may be empty, in which case
// ./drillcast.yaml is used when present. flags maps config keys to flag
// names; only flags the user actually set override lower layers.
func Load(cfgFile string, fs *pflag.FlagSet, flags map[string]string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if fs != nil {
		for key, name := range flags {
			f := fs.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("unknown flag %q for key %q", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
// Track selection and repetition counts are validated per request.
func (c *Config) Validate() error {
	for name, code := range map[string]string{
		"source_language": c.SourceLanguage,
		"target_language": c.TargetLanguage,
	} {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("%s %q is not a valid language tag: %w", name, code, err)
		}
	}

	if _, err := subtitle.ParseFormat(c.SubtitleFormat); err != nil {
		return err
	}

	switch synth.Provider(c.Synthesis.Provider) {
	case synth.ProviderGoogleTranslate, synth.ProviderOpenAI, synth.ProviderGemini:
	default:
		return fmt.Errorf("unsupported synthesis provider: %q", c.Synthesis.Provider)
	}
	if c.Synthesis.Concurrency < 1 {
		return fmt.Errorf("synthesis.concurrency must be at least 1, got %d", c.Synthesis.Concurrency)
	}

	l := c.Layout
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout size must be positive, got %dx%d", l.Width, l.Height)
	}
	if l.Padding < 0 || 2*l.Padding >= l.Width {
		return fmt.Errorf("layout.padding %d leaves no drawable width", l.Padding)
	}
	if l.FPS <= 0 {
		return fmt.Errorf("layout.fps must be positive, got %d", l.FPS)
	}

	if err := c.Pauses.Audio.Validate(); err != nil {
		return fmt.Errorf("pauses.audio: %w", err)
	}
	if err := c.Pauses.Video.Validate(); err != nil {
		return fmt.Errorf("pauses.video: %w", err)
	}
	if c.FallbackSilence <= 0 {
		return fmt.Errorf("fallback_silence must be positive, got %v", c.FallbackSilence)
	}
	return nil
}

func (c *Config) Plan() sentence.Plan {
	return sentence.Plan{SourceReps: c.SourceReps, TargetReps: c.TargetReps}
}

// LayoutOptions maps layout settings onto the engine, choosing each
// language's wrapping policy from its script.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		FontPath:          c.Layout.FontPath,
		FallbackFontPaths: c.Layout.FallbackFontPaths,
		FontSize:          c.Layout.FontSize,
		Width:             c.Layout.Width,
		Height:            c.Layout.Height,
		Padding:           c.Layout.Padding,
		Background:        c.Layout.Background,
		TextColor:         c.Layout.TextColor,
		SourcePolicy:      layout.PolicyFor(c.SourceLanguage),
		TargetPolicy:      layout.PolicyFor(c.TargetLanguage),
	}
}

func (c *Config) SynthOptions() synth.Options {
	return synth.Options{
		Model:   c.Synthesis.Model,
		Voice:   c.Synthesis.Voice,
		BaseURL: c.Synthesis.BaseURL,
	}
}

// Subtitles returns the validated sidecar format.
func (c *Config) Subtitles() subtitle.Format {
	f, err := subtitle.ParseFormat(c.SubtitleFormat)
	if err != nil {
		return subtitle.FormatNone
	}
	return f
}

// APIKey returns synthesis.api_key, falling back to the provider's usual
// environment variable.
func (c *Config) APIKey() string {
	if c.Synthesis.APIKey != "" {
		return c.Synthesis.APIKey
	}
	switch synth.Provider(c.Synthesis.Provider) {
	case synth.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case synth.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}
