package partner

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindAuthInvalid       ErrorKind = "auth_invalid"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTransport         ErrorKind = "transport"
	KindRateLimited       ErrorKind = "rate_limited"
	KindUnknown           ErrorKind = "unknown"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Vendor error codes that mean the access token is expired, revoked or invalid.
var authErrorCodes = map[int]bool{
	102: true, // session key invalid
	190: true, // access token invalid or expired
	463: true, // session expired
	467: true, // invalid access token
}

// Vendor error codes for partner-side throttling.
var throttleErrorCodes = map[int]bool{
	4:     true,
	80007: true,
}

// Error is a classified partner failure.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("partner %s: %s (status %d, code %d): %s", e.Op, e.Kind, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("partner %s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NeedsReauth reports that retrying is pointless until the credential is re-registered.
func (e *Error) NeedsReauth() bool { return e.Kind == KindAuthInvalid }

// KindOf extracts the classification from any error. Unclassified errors are KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}
	return KindUnknown
}
