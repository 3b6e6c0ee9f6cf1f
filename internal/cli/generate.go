package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mgpai22/drillcast/internal/audio"
	"github.com/mgpai22/drillcast/internal/compile"
	ffmpegbin "github.com/mgpai22/drillcast/internal/ffmpeg"
	"github.com/mgpai22/drillcast/internal/synth"
	"github.com/mgpai22/drillcast/internal/timeline"
	"github.com/mgpai22/drillcast/internal/video"
)

var generateCmd = &cobra.Command{
	Use:   "generate [input_file|-]",
	Short: "Compile sentence pairs into drill audio and video",
	Long: `Compile a list of sentence pairs into an mp3 and/or an mp4 drill.

Each line holds one pair: source text, a comma, then target text. Later
commas belong to the target text. Lines that do not split into two
non-empty parts are skipped.

Every source sentence is spoken --source-reps times and every target
sentence --target-reps times, separated by fixed pauses. If speech for one
sentence cannot be synthesized it is replaced by a short silence. If one
track fails to encode, the other is still produced.

Examples:
  drillcast generate sentences.txt
  drillcast generate sentences.txt --video=false --target-reps 5
  drillcast generate sentences.txt -p openai --voice nova --concurrency 4
  cat sentences.txt | drillcast generate - -s zh -t en -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addInputFlags(generateCmd)

	generateCmd.Flags().
		Bool("audio", true, "Produce the audio track")
	generateCmd.Flags().
		Bool("video", true, "Produce the video track")
	generateCmd.Flags().
		StringP("output-dir", "o", ".", "Directory for finished artifacts")
	generateCmd.Flags().
		StringP("format", "f", "srt", "Sidecar subtitle format (srt, vtt, ass, none)")
	generateCmd.Flags().
		StringP("provider", "p", "gtts", "Speech provider (gtts, openai, gemini)")
	generateCmd.Flags().
		StringP("api-key", "k", "", "Provider API key (or set OPENAI_API_KEY / GEMINI_API_KEY)")
	generateCmd.Flags().
		String("model", "", "Speech model (provider default when empty)")
	generateCmd.Flags().
		String("voice", "", "Speech voice (provider default when empty)")
	generateCmd.Flags().
		Int("concurrency", 1, "Number of parallel synthesis workers")
}

var generateFlagKeys = map[string]string{
	"audio":                 "audio",
	"video":                 "video",
	"output_dir":            "output-dir",
	"subtitle_format":       "format",
	"synthesis.provider":    "provider",
	"synthesis.api_key":     "api-key",
	"synthesis.model":       "model",
	"synthesis.voice":       "voice",
	"synthesis.concurrency": "concurrency",
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(cmd, generateFlagKeys)
	if err != nil {
		return err
	}

	input, err := readInput(args[0])
	if err != nil {
		return err
	}

	if _, err := ffmpegbin.Ensure(); err != nil {
		return fmt.Errorf("ffmpeg is required: %w", err)
	}

	synthesizer, err := synth.Factory(ctx, synth.Provider(cfg.Synthesis.Provider), cfg.APIKey(), cfg.SynthOptions())
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	sink, finish := progressSink()

	compiler := compile.New(compile.Config{
		Timeline: timeline.Config{
			Synthesizer:     synthesizer,
			Audio:           audio.NewEncoder(audio.DefaultOptions()),
			Video:           video.NewEncoder(video.Options{FrameRate: cfg.Layout.FPS}),
			Frames:          newLayoutEngine(cfg),
			SourceLanguage:  cfg.SourceLanguage,
			TargetLanguage:  cfg.TargetLanguage,
			AudioPauses:     cfg.Pauses.Audio,
			VideoPauses:     cfg.Pauses.Video,
			FallbackSilence: cfg.FallbackSilence,
			Concurrency:     cfg.Synthesis.Concurrency,
		},
		ScratchRoot:    cfg.ScratchDir,
		OutputDir:      cfg.OutputDir,
		SubtitleFormat: cfg.Subtitles(),
		Progress:       sink,
		Logger:         logger,
	})

	logger.Infow("Starting compilation",
		"input", args[0],
		"provider", cfg.Synthesis.Provider,
		"source_language", cfg.SourceLanguage,
		"target_language", cfg.TargetLanguage,
		"output_dir", cfg.OutputDir,
	)

	art, err := compiler.Run(ctx, compile.Request{
		Input: input,
		Audio: cfg.Audio,
		Video: cfg.Video,
		Plan:  cfg.Plan(),
	})
	finish()
	if err != nil {
		return err
	}

	printArtifacts(art)

	if len(art.Paths()) == 0 {
		return fmt.Errorf("no artifacts were produced")
	}
	return nil
}

func printArtifacts(art compile.Artifacts) {
	for _, p := range []string{art.Audio, art.AudioSubtitles, art.Video, art.VideoSubtitles} {
		if p == "" {
			continue
		}
		abs, _ := filepath.Abs(p)
		fmt.Printf("Generated: %s\n", abs)
	}

	tracks := make([]string, 0, len(art.Failures))
	for t := range art.Failures {
		tracks = append(tracks, string(t))
	}
	sort.Strings(tracks)
	for _, t := range tracks {
		fmt.Printf("Failed %s track: %v\n", t, art.Failures[compile.Track(t)])
	}
	fmt.Printf("  Pairs: %d\n", art.Pairs)
}
