// Package apperrors provides common static errors used throughout the application.
package apperrors

import (
	"errors"
	"fmt"
)

// HTTPError represents an HTTP error with a status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(statusCode int, body string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Body: body}
}

// Common static errors used throughout the application.
var (
	// ErrBaseURLRequired is returned when no Confluence base URL is configured.
	ErrBaseURLRequired = errors.New("confluence base URL required (--url or CFLOW_BASE_URL)")

	// ErrCredentialsRequired is returned when no API credentials are configured.
	ErrCredentialsRequired = errors.New("confluence credentials required (CFLOW_USER and CFLOW_TOKEN)")

	// ErrNoRootPages is returned when a sync pass is started without configured root page IDs.
	ErrNoRootPages = errors.New("no root page IDs configured (--roots or CFLOW_ROOT_PAGES)")

	// ErrMalformedBaseURL is returned when the configured base URL cannot be parsed.
	ErrMalformedBaseURL = errors.New("malformed confluence base URL")

	// ErrAuthFailed is returned when the remote rejects the configured credentials.
	ErrAuthFailed = errors.New("authentication failed, check user and API token")

	// ErrEndpointNotFound is returned when the identity endpoint is not found at the base URL.
	ErrEndpointNotFound = errors.New("API endpoint not found, check the base URL")

	// ErrPageIDRequired is returned when a page ID is required but not provided.
	ErrPageIDRequired = errors.New("page ID required")

	// ErrPageNotTracked is returned when a single-page resync targets a page with no sync record.
	ErrPageNotTracked = errors.New("page has no sync record, run a full sync first")

	// ErrMaxRetriesExceeded is returned when the maximum number of retries is exceeded.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
