package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
)

// Client construction errors
var (
	ErrEmptyBaseURL = errors.New("API base URL is empty")
	ErrEmptyToken   = errors.New("API token is empty")
)

// ErrFileAlreadyExists indicates the upload would duplicate an attached file.
var ErrFileAlreadyExists = errors.New("file already exists")

// maxErrorBody caps how much of a failed response is kept in a StatusError
const maxErrorBody = 4096

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Operation, e.StatusCode, body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports a 404 from the gateway.
func IsNotFound(err error) bool {
	return StatusCode(err) == nethttp.StatusNotFound
}

// IsUnauthorized reports a rejected token.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden
}

// IsFileExistsError reports a duplicate upload: the sentinel, a 409, or a
// body naming the conflict.
func IsFileExistsError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileAlreadyExists) || StatusCode(err) == nethttp.StatusConflict {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{"already exists", "duplicate", "file exists", "name already in use"} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
