package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/mgpai22/drillcast/internal/compile"
	"github.com/mgpai22/drillcast/internal/sentence"
	"github.com/mgpai22/drillcast/internal/sequence"
)

var planCmd = &cobra.Command{
	Use:   "plan [input_file|-]",
	Short: "Show the segment order without synthesizing anything",
	Long: `Parse the input and print the segment sequence of each track as a table.

Speech durations are unknown until synthesis, so the offset column only
accumulates pause time.

Examples:
  drillcast plan sentences.txt
  drillcast plan sentences.txt --track video --target-reps 2`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addInputFlags(planCmd)

	planCmd.Flags().
		String("track", "both", "Track to show (audio, video, both)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	track, _ := cmd.Flags().GetString("track")
	req := compile.Request{Plan: cfg.Plan()}
	switch track {
	case "audio":
		req.Audio = true
	case "video":
		req.Video = true
	case "both":
		req.Audio, req.Video = true, true
	default:
		return fmt.Errorf("unsupported track %q: use audio, video, or both", track)
	}

	req.Input, err = readInput(args[0])
	if err != nil {
		return err
	}
	pairs, err := compile.Validate(req)
	if err != nil {
		return err
	}

	if req.Audio {
		printPlan("Audio", pairs, req.Plan, cfg.Pauses.Audio)
	}
	if req.Video {
		printPlan("Video", pairs, req.Plan, cfg.Pauses.Video)
	}
	return nil
}

func printPlan(title string, pairs []sentence.Pair, plan sentence.Plan, pauses sequence.Pauses) {
	segments := sequence.Sequence(pairs, plan, pauses)
	fmt.Printf("%s track: %d segments, %s of pauses\n", title, len(segments), sequence.SilenceTotal(segments))
	fmt.Println(renderTable(
		[]string{"#", "Segment", "Pair", "Language", "Rep", "Duration", "Pause offset"},
		planRows(segments),
		1, 3, 5, 6, 7,
	))
}

// planRows describes each segment; speech has no known duration yet.
func planRows(segments []sequence.Segment) [][]string {
	rows := make([][]string, 0, len(segments))
	var offset time.Duration
	for i, s := range segments {
		row := []string{strconv.Itoa(i + 1), "", strconv.Itoa(s.PairIndex + 1), "", "", "", offset.String()}
		if s.IsSpeech() {
			row[1] = "speech"
			row[3] = string(s.Language)
			row[4] = strconv.Itoa(s.Repetition)
			row[5] = "speech"
		} else {
			row[1] = s.Silence.String()
			row[5] = s.Duration.String()
			offset += s.Duration
		}
		rows = append(rows, row)
	}
	return rows
}

// renderTable draws rows under headers; numbered columns (1-based) in
// rightAligned are aligned right.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, row := range rows {
		tw.AppendRow(toRow(row))
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, n := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string) table.Row {
	r := make(table.Row, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	return r
}
