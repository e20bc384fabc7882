package api

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/online-status/pkg/presence"
)

// StatusError is returned when the remote store answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap maps 401 and 403 onto presence.ErrUnauthorized so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return presence.ErrUnauthorized
	}
	return nil
}
