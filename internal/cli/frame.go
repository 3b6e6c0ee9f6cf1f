package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/drillcast/internal/compile"
)

var frameCmd = &cobra.Command{
	Use:   "frame [input_file|-]",
	Short: "Render one pair's video frame to a PNG",
	Long: `Render the still frame that the video track shows for one sentence pair.

Useful for checking fonts and line wrapping before a full compile.

Examples:
  drillcast frame sentences.txt
  drillcast frame sentences.txt --index 3 -o pair3.png --font ./NotoSansJP.ttf`,
	Args: cobra.ExactArgs(1),
	RunE: runFrame,
}

func init() {
	rootCmd.AddCommand(frameCmd)
	addInputFlags(frameCmd)

	frameCmd.Flags().
		IntP("index", "i", 1, "1-based index of the pair to render")
	frameCmd.Flags().
		StringP("output", "o", "frame.png", "Output PNG path")
}

func runFrame(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	index, _ := cmd.Flags().GetInt("index")
	outputPath, _ := cmd.Flags().GetString("output")

	input, err := readInput(args[0])
	if err != nil {
		return err
	}
	pairs, err := compile.Validate(compile.Request{Input: input, Video: true, Plan: cfg.Plan()})
	if err != nil {
		return err
	}
	if index < 1 || index > len(pairs) {
		return fmt.Errorf("index %d out of range: input has %d pairs", index, len(pairs))
	}

	engine := newLayoutEngine(cfg)
	frame, err := engine.RenderFrame(pairs[index-1], outputPath)
	if err != nil {
		return fmt.Errorf("failed to render frame: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Frame rendered: %s\n", absOutput)
	fmt.Printf("  Source lines: %s\n", strings.Join(frame.SourceLines, " | "))
	fmt.Printf("  Target lines: %s\n", strings.Join(frame.TargetLines, " | "))
	return nil
}
