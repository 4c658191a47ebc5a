package integration

import (
	"fmt"
)

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status code: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status code: %s: %s", e.Op, e.Status, e.Body)
}

// DecodeError is returned when a body is not the JSON shape the operation
// expects, or fails validation
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// APIError carries the {"error": "..."} envelope the backend sends for
// lookups it cannot satisfy, usually with status 200
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend error: %s", e.Op, e.Message)
}
