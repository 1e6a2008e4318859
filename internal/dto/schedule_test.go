package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveRequestAcceptsNumbersAndStrings(t *testing.T) {
	body := `{"tasks":[
		{"jobId":1,"taskId":"2","machineId":"M1","duration":3.0,"deadline":null},
		{"jobId":"A","taskId":1,"machineId":7,"duration":"4","deadline":12}
	],"options":{"tardinessWeight":2,"maxSolveTime":"5s"}}`

	var req SolveRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	records := req.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].JobID)
	assert.Equal(t, "3.0", records[0].Duration)
	assert.Equal(t, "", records[0].Deadline)
	assert.Equal(t, "7", records[1].MachineID)
	assert.Equal(t, "12", records[1].Deadline)

	require.NotNil(t, req.Options.TardinessWeight)
	assert.Equal(t, int64(2), *req.Options.TardinessWeight)
	timeout, err := req.Options.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestFlexValueRejectsOtherTypes(t *testing.T) {
	var req SolveRequest
	assert.Error(t, json.Unmarshal([]byte(`{"tasks":[{"jobId":true}]}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"tasks":[{"jobId":{"a":1}}]}`), &req))
}

func TestSolveOptionsTimeout(t *testing.T) {
	d, err := SolveOptions{}.Timeout()
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = SolveOptions{MaxSolveTime: "soon"}.Timeout()
	assert.Error(t, err)

	_, err = SolveOptions{MaxSolveTime: "-1s"}.Timeout()
	assert.Error(t, err)
}
