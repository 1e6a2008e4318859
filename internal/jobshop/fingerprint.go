package jobshop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/noah-isme/jobshop-api/internal/models"
)

// Fingerprint hashes the normalized instance together with the objective
// weight. Two inputs that differ only in record order or numeric spelling
// ("3" and "3.0") share a fingerprint.
func Fingerprint(inst *models.Instance, tardinessWeight int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "v1|w=%d|h=%d\n", tardinessWeight, inst.Horizon)
	for _, task := range inst.Tasks {
		fmt.Fprintf(h, "t|%q|%q|%q|%d\n", task.JobID, task.TaskID, task.MachineID, task.Duration)
	}
	for _, job := range inst.Jobs {
		fmt.Fprintf(h, "j|%q|%d\n", job.ID, job.Deadline)
	}
	return hex.EncodeToString(h.Sum(nil))
}
