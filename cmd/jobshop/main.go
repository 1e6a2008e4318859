package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/pkg/logger"
)

var (
	verbose bool
	logr    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "jobshop",
	Short: "Offline job-shop scheduler",
	Long: `Build, solve and inspect job-shop scheduling instances from CSV files.

Input files carry a header row with JobID, TaskID, MachineID, Duration and an
optional Deadline column.

Examples:
  jobshop solve --file data/sample_jobs.csv
  jobshop solve --file jobs.csv --weight 5 --timeout 10s --output json
  jobshop validate --file jobs.csv
  jobshop token --user ops --role PLANNER`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.NewCLI(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logr = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logr.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log solver progress to stderr")
	rootCmd.AddCommand(solveCmd, validateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
