package jobshop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/models"
)

func TestRawUtilization(t *testing.T) {
	inst := mustLoad(t, twoByTwo())

	util := RawUtilization(inst)
	require.Len(t, util, 2)
	assert.InDelta(t, 7.0/11.0, util["M1"], 1e-9)
	assert.InDelta(t, 4.0/11.0, util["M2"], 1e-9)
}

func TestScheduledUtilizationKeepsIdleMachines(t *testing.T) {
	tasks := []models.ScheduledTask{
		{Task: models.Task{JobID: "1", TaskID: "1", MachineID: "A", Duration: 2}, Start: 0, End: 2},
		{Task: models.Task{JobID: "1", TaskID: "2", MachineID: "Z", Duration: 2}, Start: 2, End: 4},
	}

	util := ScheduledUtilization([]models.ID{"A", "B"}, tasks, 4)
	require.Len(t, util, 2)
	assert.Equal(t, 0.5, util["A"])
	assert.Equal(t, 0.0, util["B"])
}

func TestUtilizationZeroHorizon(t *testing.T) {
	inst := mustLoad(t, []models.TaskRecord{
		rec("1", "1", "A", "0", ""),
		rec("1", "2", "B", "0", ""),
	})
	require.Equal(t, int64(0), inst.Horizon)

	for _, util := range []models.UtilizationMap{
		RawUtilization(inst),
		ScheduledUtilization(inst.Machines, nil, inst.Horizon),
	} {
		require.Len(t, util, 2)
		for _, v := range util {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestUtilizationWithinUnitInterval(t *testing.T) {
	result, err := newTestPipeline().Run(context.Background(), twoByTwo(), Options{TardinessWeight: 1})
	require.NoError(t, err)
	for _, util := range []models.UtilizationMap{result.Utilization.Before, result.Utilization.After} {
		for machine, v := range util {
			assert.GreaterOrEqual(t, v, 0.0, machine)
			assert.LessOrEqual(t, v, 1.0, machine)
		}
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(
		models.UtilizationMap{"A": 0.4, "B": 0.6},
		models.UtilizationMap{"A": 0.6, "B": 0.9},
	)
	assert.InDelta(t, 0.5, summary.AverageBefore, 1e-9)
	assert.InDelta(t, 0.75, summary.AverageAfter, 1e-9)
	assert.InDelta(t, 50.0, summary.ImprovementPercent, 1e-9)

	empty := Summarize(models.UtilizationMap{}, models.UtilizationMap{"A": 0.5})
	assert.Equal(t, 0.0, empty.ImprovementPercent)
}
