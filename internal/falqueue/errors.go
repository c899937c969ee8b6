package falqueue

import (
	"errors"
	"fmt"
)

// ErrTransport marks failures of the HTTP channel itself (connection
// errors, timeouts, unexpected status codes, undecodable payloads). It is
// distinct from job-level failures: a caller that sees ErrTransport knows
// the call to the queue failed, not the generation job.
var ErrTransport = errors.New("queue transport failure")

// JobFailedError is returned when a submitted job reaches the FAILED or
// CANCELLED terminal state. Payload carries the raw status response for
// operator diagnosis.
type JobFailedError struct {
	Status  string
	Payload string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("generation request %s: %s", e.Status, e.Payload)
}

// ResultError is returned when a completed job's result payload carries an
// explicit error field instead of output text.
type ResultError struct {
	Message string
}

func (e *ResultError) Error() string {
	return "generation result error: " + e.Message
}
