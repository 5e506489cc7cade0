package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned for 401 responses; the user must sign in.
var ErrUnauthorized = errors.New("please sign in to use this feature")

// StatusError is a non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: API error %d: %s", e.Op, e.Code, body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
