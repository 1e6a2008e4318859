package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/noah-isme/jobshop-api/internal/jobshop"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a CSV instance without solving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(validateFile)
		if err != nil {
			return err
		}
		inst, err := jobshop.Load(records)
		if err != nil {
			return err
		}
		if len(inst.Tasks) == 0 {
			return fmt.Errorf("%s contains no tasks", validateFile)
		}

		machines := make([]string, len(inst.Machines))
		for i, m := range inst.Machines {
			machines[i] = string(m)
		}
		table, err := pterm.DefaultTable.WithData(pterm.TableData{
			{"Tasks", fmt.Sprint(len(inst.Tasks))},
			{"Jobs", fmt.Sprint(len(inst.Jobs))},
			{"Machines", strings.Join(machines, ", ")},
			{"Horizon", fmt.Sprint(inst.Horizon)},
		}).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "data/sample_jobs.csv", "CSV instance to check")
}
