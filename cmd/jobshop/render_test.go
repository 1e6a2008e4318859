package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/models"
)

func sampleReport() *models.ScheduleResult {
	byMachine := []models.ScheduledTask{
		{Task: models.Task{JobID: "1", TaskID: "1", MachineID: "M1", Duration: 3}, Start: 0, End: 3},
		{Task: models.Task{JobID: "2", TaskID: "1", MachineID: "M2", Duration: 2}, Start: 0, End: 2},
	}
	return &models.ScheduleResult{
		Status:    "OPTIMAL",
		Objective: 3,
		Makespan:  3,
		ByMachine: byMachine,
		Utilization: models.UtilizationSummary{
			After:        models.UtilizationMap{"M2": 0.5, "M1": 1},
			AverageAfter: 0.75,
		},
	}
}

func TestCheckOutput(t *testing.T) {
	for _, format := range []string{"table", "json", "csv"} {
		assert.NoError(t, checkOutput(format))
	}
	assert.Error(t, checkOutput("yaml"))
}

func TestUtilizationBarsSortedPercentages(t *testing.T) {
	bars := utilizationBars(models.UtilizationMap{"M2": 0.456, "M1": 1})
	require.Len(t, bars, 2)
	assert.Equal(t, "M1", bars[0].Label)
	assert.Equal(t, 100, bars[0].Value)
	assert.Equal(t, "M2", bars[1].Label)
	assert.Equal(t, 46, bars[1].Value)
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), outputJSON))

	var decoded models.ScheduleResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "OPTIMAL", decoded.Status)
	assert.Len(t, decoded.ByMachine, 2)
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), outputCSV))

	assert.Equal(t, "Machine,Job,Task,Start,End,Duration\nM1,1,1,0,3,3\nM2,2,1,0,2,2\n", buf.String())
}

func TestWriteReportTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), outputTable))

	out := buf.String()
	assert.Contains(t, out, "OPTIMAL")
	assert.Contains(t, out, "Machine utilization")
	assert.Contains(t, out, "Average utilization 75.0%")
}
