package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured error returned by the replicas server.
//
// Code is the coarse status name ("not_found", "conflict", ...). ErrorCode
// is the numeric catalog code: 1xxx validation, 2xxx datafile and replica
// state, 3xxx auth and limits, 4xxx storage and internal failures.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	code := e.Code
	if code != "" && e.ErrorCode > 0 {
		code = fmt.Sprintf("%s[%d]", code, e.ErrorCode)
	}
	switch {
	case code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// ErrorCodeOf returns the numeric code carried by err, or 0.
func ErrorCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode
	}
	return 0
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
