package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"attest/internal/logging"
)

var (
	// Global flags
	verbose int
	rootDir string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "attest",
	Short: "attest - a test-script runner with assertion rewriting",
	Long: `attest runs Go test scripts through an embedded interpreter.

In the default mode it rewrites each script's assert statements on load so a
failing assertion reports the runtime values of its subexpressions instead of
a bare "assertion failed". Scripts are plain Go files (package main) whose
TestXxx functions run sequentially.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (-vv disables explanation truncation)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "run root directory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
