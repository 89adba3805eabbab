package notion

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is returned when a request keeps being rate limited
// after the maximum number of retry attempts.
var ErrRetriesExhausted = errors.New("notion api: exhausted retries on 429")

// APIError represents a non-2xx response from the Notion API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("notion api error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether the error is a Notion 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
