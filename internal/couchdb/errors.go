package couchdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// NetworkError means the request could not be sent or no response was received
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FetchError means CouchDB answered with a non-success status
type FetchError struct {
	Op         string
	StatusCode int
	Code       string // CouchDB "error" field, e.g. "conflict"
	Reason     string // CouchDB "reason" field
}

func (e *FetchError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: HTTP %d (%s: %s)", e.Op, e.StatusCode, e.Code, e.Reason)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func newFetchError(op string, resp *resty.Response) *FetchError {
	fetchErr := &FetchError{Op: op, StatusCode: resp.StatusCode()}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		fetchErr.Code = body.Error
		fetchErr.Reason = body.Reason
	}

	return fetchErr
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none
func StatusCode(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from CouchDB
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a revision conflict
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
