package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/noah-isme/jobshop-api/internal/jobshop"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/pkg/solver/disjunctive"
)

var (
	solveFile      string
	solveWeight    int64
	solveTimeout   time.Duration
	solveNodeLimit int64
	solveOutput    string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a CSV instance and print the schedule",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&solveFile, "file", "f", "data/sample_jobs.csv", "CSV instance to solve")
	solveCmd.Flags().Int64VarP(&solveWeight, "weight", "w", jobshop.DefaultTardinessWeight, "Tardiness weight")
	solveCmd.Flags().DurationVarP(&solveTimeout, "timeout", "t", 30*time.Second, "Solver time limit")
	solveCmd.Flags().Int64Var(&solveNodeLimit, "node-limit", 0, "Stop the search after this many nodes (0 = unlimited)")
	solveCmd.Flags().StringVarP(&solveOutput, "output", "o", outputTable, "Output format: table, json or csv")
}

func runSolve(cmd *cobra.Command, args []string) error {
	if err := checkOutput(solveOutput); err != nil {
		return err
	}
	if solveWeight < 0 {
		return fmt.Errorf("--weight must be non-negative")
	}
	records, err := readRecords(solveFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	pipeline := jobshop.NewPipeline(disjunctive.New(disjunctive.Config{
		MaxDuration: solveTimeout,
		NodeLimit:   solveNodeLimit,
		Logger:      logr.Named("solver"),
	}), logr)

	report, err := solveWithSpinner(ctx, pipeline, records)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), report, solveOutput)
}

func solveWithSpinner(ctx context.Context, pipeline *jobshop.Pipeline, records []models.TaskRecord) (*models.ScheduleResult, error) {
	var spinner *pterm.SpinnerPrinter
	if solveOutput == outputTable {
		spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Solving %d tasks...", len(records)))
	}
	result, err := pipeline.Run(ctx, records, jobshop.Options{
		TardinessWeight: solveWeight,
		MaxSolveTime:    solveTimeout,
	})
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return nil, err
	}
	report := result.Report()
	if spinner != nil {
		spinner.Success(fmt.Sprintf("%s schedule found in %dms", report.Status, report.Stats.ElapsedMs))
	}
	return &report, nil
}

func readRecords(path string) ([]models.TaskRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return jobshop.ReadCSV(f)
}
