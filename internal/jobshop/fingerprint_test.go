package jobshop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/jobshop-api/internal/models"
)

func TestFingerprintIgnoresRecordOrderAndSpelling(t *testing.T) {
	records := twoByTwo()
	reordered := []models.TaskRecord{records[3], records[1], records[2], records[0]}
	reordered[0].Duration = "4.0"

	a := Fingerprint(mustLoad(t, records), 1)
	b := Fingerprint(mustLoad(t, reordered), 1)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintSeparatesWeightsAndDeadlines(t *testing.T) {
	base := Fingerprint(mustLoad(t, twoByTwo()), 1)
	assert.NotEqual(t, base, Fingerprint(mustLoad(t, twoByTwo()), 2))

	withDeadline := twoByTwo()
	withDeadline[0].Deadline = "5"
	assert.NotEqual(t, base, Fingerprint(mustLoad(t, withDeadline), 1))
}
