package cli

import (
	"github.com/spf13/cobra"

	"github.com/mgpai22/drillcast/internal/logging"
)

var (
	verbose bool
	cfgFile string
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "drillcast",
	Short: "Bilingual sentence drills as audio and video",
	Long: `Drillcast turns a list of bilingual sentence pairs into a listening drill:
an mp3 in which every sentence is repeated with fixed pauses, and a video
that shows both sentences on screen while they are spoken.

Input is one pair per line, source and target separated by the first comma.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "Config file (default ./drillcast.yaml)")
}
