package jobshop

import (
	"github.com/noah-isme/jobshop-api/internal/models"
)

// RawUtilization divides each machine's total assigned duration by the horizon.
func RawUtilization(inst *models.Instance) models.UtilizationMap {
	busy := make(map[models.ID]int64, len(inst.Machines))
	for _, task := range inst.Tasks {
		busy[task.MachineID] += task.Duration
	}
	return ratios(inst.Machines, busy, inst.Horizon)
}

// ScheduledUtilization divides each machine's realised busy time by the horizon.
// Tasks on machines outside the known set are ignored.
func ScheduledUtilization(machines []models.ID, tasks []models.ScheduledTask, horizon int64) models.UtilizationMap {
	busy := make(map[models.ID]int64, len(machines))
	for _, task := range tasks {
		busy[task.MachineID] += task.End - task.Start
	}
	return ratios(machines, busy, horizon)
}

// Summarize compares two maps the way the dashboard reports them: averages
// across machines and the relative change of the average in percent.
func Summarize(before, after models.UtilizationMap) models.UtilizationSummary {
	summary := models.UtilizationSummary{
		Before:        before,
		After:         after,
		AverageBefore: before.Average(),
		AverageAfter:  after.Average(),
	}
	if summary.AverageBefore > 0 {
		summary.ImprovementPercent = (summary.AverageAfter - summary.AverageBefore) / summary.AverageBefore * 100
	}
	return summary
}

func ratios(machines []models.ID, busy map[models.ID]int64, horizon int64) models.UtilizationMap {
	out := make(models.UtilizationMap, len(machines))
	for _, machine := range machines {
		if horizon <= 0 {
			out[machine] = 0
			continue
		}
		ratio := float64(busy[machine]) / float64(horizon)
		switch {
		case ratio < 0:
			ratio = 0
		case ratio > 1:
			ratio = 1
		}
		out[machine] = ratio
	}
	return out
}
