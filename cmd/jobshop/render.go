package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pterm/pterm"

	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/service"
	"github.com/noah-isme/jobshop-api/pkg/export"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputCSV   = "csv"
)

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputCSV:
		return nil
	}
	return fmt.Errorf("unsupported output %q (want table, json or csv)", format)
}

func writeReport(w io.Writer, report *models.ScheduleResult, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case outputCSV:
		renderer, err := export.ForFormat(outputCSV)
		if err != nil {
			return err
		}
		body, err := renderer.Render(service.ScheduleDataset(report, "Schedule"))
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	default:
		return writeTables(w, report)
	}
}

func writeTables(w io.Writer, report *models.ScheduleResult) error {
	summary, err := pterm.DefaultTable.WithData(pterm.TableData{
		{"Status", report.Status},
		{"Objective", fmt.Sprint(report.Objective)},
		{"Makespan", fmt.Sprint(report.Makespan)},
		{"Total tardiness", fmt.Sprint(report.TotalTardiness)},
		{"Tardiness weight", fmt.Sprint(report.TardinessWeight)},
		{"Search nodes", fmt.Sprint(report.Stats.Nodes)},
	}).Srender()
	if err != nil {
		return err
	}

	rows := pterm.TableData{{"Machine", "Job", "Task", "Start", "End", "Duration"}}
	for _, task := range report.ByMachine {
		rows = append(rows, []string{
			string(task.MachineID),
			string(task.JobID),
			string(task.TaskID),
			fmt.Sprint(task.Start),
			fmt.Sprint(task.End),
			fmt.Sprint(task.Duration),
		})
	}
	schedule, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}

	chart, err := pterm.DefaultBarChart.
		WithHorizontal().
		WithShowValue().
		WithBars(utilizationBars(report.Utilization.After)).
		Srender()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, summary)
	fmt.Fprintln(w)
	fmt.Fprintln(w, schedule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Machine utilization (%)")
	fmt.Fprintln(w, chart)
	fmt.Fprintf(w, "Average utilization %.1f%% (before %.1f%%, improvement %.1f%%)\n",
		report.Utilization.AverageAfter*100,
		report.Utilization.AverageBefore*100,
		report.Utilization.ImprovementPercent)
	return nil
}

// utilizationBars orders machines by ID so the chart is stable between runs.
func utilizationBars(util models.UtilizationMap) pterm.Bars {
	machines := make([]string, 0, len(util))
	for id := range util {
		machines = append(machines, string(id))
	}
	sort.Strings(machines)

	bars := make(pterm.Bars, len(machines))
	for i, id := range machines {
		bars[i] = pterm.Bar{Label: id, Value: int(math.Round(util[models.ID(id)] * 100))}
	}
	return bars
}
