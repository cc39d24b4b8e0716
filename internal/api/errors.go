package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionNotReady reports that the session exists but has no document
// context yet. Test for it with errors.Is.
var ErrSessionNotReady = errors.New("session not ready")

// Kind classifies an APIError.
type Kind int

const (
	KindUnknown   Kind = iota
	KindTransport      // no response
	KindStatus         // non-2xx response
	KindDecode         // response body unreadable
	KindNotReady       // session has no context yet
)

// NotReadyCode is the structured error code the service sends alongside a
// not-ready rejection.
const NotReadyCode = "SESSION_NOT_READY"

// legacyNotReadyHints are detail fragments older service builds use instead
// of NotReadyCode.
var legacyNotReadyHints = []string{
	"not ready",
	"no document context",
	"no document has been uploaded",
}

// APIError represents a failed call to the analysis service
type APIError struct {
	Op         string // "start", "status", "query", "ping"
	StatusCode int
	Detail     string
	Kind       Kind
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed: %s", e.Op, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s failed", e.Op)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSessionNotReady) true for not-ready errors.
func (e *APIError) Is(target error) bool {
	return target == ErrSessionNotReady && e.Kind == KindNotReady
}

// classify maps an error response onto a Kind.
func classify(status int, code, detail string) Kind {
	if code == NotReadyCode || status == http.StatusConflict || status == http.StatusTooEarly {
		return KindNotReady
	}
	if status >= 400 && status < 500 {
		lower := strings.ToLower(detail)
		for _, hint := range legacyNotReadyHints {
			if strings.Contains(lower, hint) {
				return KindNotReady
			}
		}
	}
	return KindStatus
}
