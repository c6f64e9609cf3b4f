package whm

import "errors"

// Error taxonomy for remote control-panel calls. Callers match these with
// errors.Is; the wrapped error carries the transport detail.
var (
	// ErrUnavailable means the server could not be reached or answered
	// with an unexpected status.
	ErrUnavailable = errors.New("whm: server unavailable")

	// ErrAuthRejected means the API token was missing, expired or revoked.
	ErrAuthRejected = errors.New("whm: authentication rejected")

	// ErrTimeout means the configured connection timeout elapsed.
	ErrTimeout = errors.New("whm: request timed out")

	// ErrMalformed means the response body could not be decoded into the
	// expected shape.
	ErrMalformed = errors.New("whm: malformed response")
)
