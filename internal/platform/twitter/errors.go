package twitter

import (
	"errors"
	"fmt"
)

// ErrorKind classifies platform failures into the buckets the approval flow
// cares about. Classification happens once, here at the gateway boundary;
// callers match on the kind and never inspect raw payload shapes.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindSuspended    ErrorKind = "suspended"
	KindBlocked      ErrorKind = "blocked"
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnknown      ErrorKind = "unknown"
)

// Upstream error codes, per the platform's v1.1 error vocabulary.
const (
	codePageDoesNotExist  = 34
	codeUserSuspended     = 63
	codeRateLimitExceeded = 88
	codeBlockedByAuthor   = 136
	codeNoStatusFound     = 144
	codeNotAuthorized     = 179
)

// APIError is a normalized platform error.
type APIError struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api error: kind=%s, code=%d, message=%s", e.Kind, e.Code, e.Message)
}

func kindForCode(code int) ErrorKind {
	switch code {
	case codePageDoesNotExist, codeNoStatusFound:
		return KindNotFound
	case codeUserSuspended:
		return KindSuspended
	case codeBlockedByAuthor:
		return KindBlocked
	case codeNotAuthorized:
		return KindUnauthorized
	case codeRateLimitExceeded:
		return KindRateLimited
	default:
		return KindUnknown
	}
}

// IsAutoRejectable reports whether err means the underlying tweet is
// permanently inaccessible (deleted, suspended, blocked, protected). Matches
// that fail this way are rejected automatically instead of retried.
func IsAutoRejectable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindNotFound, KindSuspended, KindBlocked, KindUnauthorized:
		return true
	}
	return false
}

// IsRateLimited reports whether err is the platform's rate-limit response.
// Rate-limited operations are retried on the next scheduled cycle and never
// recorded as queue errors.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindRateLimited
}
