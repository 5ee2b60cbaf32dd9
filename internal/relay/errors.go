package relay

import "errors"

var (
	// ErrUnauthorized means the bearer token was missing or wrong. Reported
	// as 401 before any provider call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedInput covers an undecodable body or a history entry with an
	// unknown role. Reported as 500 before any provider call.
	ErrMalformedInput = errors.New("malformed input")
	// ErrProviderStream is any failure after the response was committed. It
	// can only surface as an aborted response body.
	ErrProviderStream = errors.New("provider stream error")
)
