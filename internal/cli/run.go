package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mgpai22/drillcast/internal/config"
	"github.com/mgpai22/drillcast/internal/layout"
	"github.com/mgpai22/drillcast/internal/progress"
)

// config keys shared by every command that reads sentence input
var inputFlagKeys = map[string]string{
	"source_language":  "source-lang",
	"target_language":  "target-lang",
	"source_reps":      "source-reps",
	"target_reps":      "target-reps",
	"layout.font_path": "font",
	"layout.font_size": "font-size",
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().
		StringP("source-lang", "s", "ja", "Source language code (e.g., ja, zh, en)")
	cmd.Flags().
		StringP("target-lang", "t", "en", "Target language code")
	cmd.Flags().
		Int("source-reps", 1, "Times each source sentence is spoken")
	cmd.Flags().
		Int("target-reps", 3, "Times each target sentence is spoken")
	cmd.Flags().
		String("font", "", "TrueType font used to measure and draw text")
	cmd.Flags().
		Float64("font-size", 45, "Font size in points")
}

func loadConfig(cmd *cobra.Command, extra map[string]string) (*config.Config, error) {
	keys := make(map[string]string, len(inputFlagKeys)+len(extra))
	for k, v := range inputFlagKeys {
		keys[k] = v
	}
	for k, v := range extra {
		keys[k] = v
	}

	cfg, err := config.Load(cfgFile, cmd.Flags(), keys)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readInput reads the sentence list from a file, or stdin for "-".
func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

// newLayoutEngine builds the text engine. A tokenizer that fails to load
// is recorded once as unavailable and the engine estimates instead.
func newLayoutEngine(cfg *config.Config) *layout.Engine {
	var tok layout.Tokenizer
	if k, err := layout.NewKagomeTokenizer(); err != nil {
		logger.Warnw("Tokenizer unavailable, wrapping by character count", "error", err)
	} else {
		tok = k
	}
	engine := layout.NewEngine(cfg.LayoutOptions(), tok, logger)

	c := engine.Config()
	logger.Infow("Layout ready",
		"font", c.FontPath,
		"can_measure", c.CanMeasure,
		"can_tokenize", c.CanTokenize,
	)
	return engine
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressSink draws a bar on interactive terminals and logs otherwise.
func progressSink() (progress.Sink, func()) {
	if !verbose && isTerminal(os.Stderr) {
		bar := progress.NewBar(os.Stderr, "Compiling")
		return bar, bar.Finish
	}
	return progress.NewLog(logger), func() {}
}
