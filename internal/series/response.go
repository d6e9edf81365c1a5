package series

import (
	"encoding/json"
	"net/http"
)

const (
	statusSuccess = "success"
	statusErrored = "errored"

	// fallbackJobRunID is echoed when the caller did not supply an id.
	fallbackJobRunID = "0"
)

// Success builds the envelope for a normalized result.
func Success(jobRunID string, result NormalizedResult, data json.RawMessage) ResponseEnvelope {
	return ResponseEnvelope{
		JobRunID:   jobRunID,
		StatusCode: http.StatusOK,
		Status:     statusSuccess,
		Result:     &result,
		Data:       data,
	}
}

// Failure builds the envelope for a failed job run. The message is the
// original error text, without any prefix.
func Failure(jobRunID string, err error) ResponseEnvelope {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ResponseEnvelope{
		JobRunID:   jobRunID,
		StatusCode: http.StatusInternalServerError,
		Status:     statusErrored,
		Error:      msg,
	}
}

// MalformedRequest builds the envelope for a request missing its id or data.
func MalformedRequest(jobRunID string) ResponseEnvelope {
	if jobRunID == "" {
		jobRunID = fallbackJobRunID
	}
	return ResponseEnvelope{
		JobRunID:   jobRunID,
		StatusCode: http.StatusBadRequest,
		Status:     statusErrored,
		Error:      "Invalid request body",
	}
}

// Succeeded reports whether the envelope carries a result.
func (e ResponseEnvelope) Succeeded() bool {
	return e.Status == statusSuccess
}
