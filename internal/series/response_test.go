package series

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessEnvelopeJSON(t *testing.T) {
	env := Success("abc", NormalizedResult{Value: 2.5, Timestamp: 1701388800000, SeriesID: "GDP", Units: "Percent Change"},
		json.RawMessage(`{"observations":[]}`))
	assert.True(t, env.Succeeded())

	body, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"jobRunID": "abc",
		"statusCode": 200,
		"status": "success",
		"result": {"value": 2.5, "timestamp": 1701388800000, "series_id": "GDP", "units": "Percent Change"},
		"data": {"observations": []}
	}`, string(body))
}

func TestFailureEnvelopeJSON(t *testing.T) {
	env := Failure("abc", errors.New("Invalid value"))
	assert.False(t, env.Succeeded())

	body, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"abc","statusCode":500,"status":"errored","error":"Invalid value"}`, string(body))
}

func TestFailureWithoutError(t *testing.T) {
	assert.Equal(t, "Unknown error", Failure("1", nil).Error)
}

func TestMalformedRequest(t *testing.T) {
	env := MalformedRequest("")
	assert.Equal(t, "0", env.JobRunID)
	assert.Equal(t, 400, env.StatusCode)
	assert.Equal(t, "errored", env.Status)
	assert.Equal(t, "Invalid request body", env.Error)

	assert.Equal(t, "job-9", MalformedRequest("job-9").JobRunID)
}
