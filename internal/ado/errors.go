package ado

import (
	"fmt"
	"strings"
)

// RequestError is returned for any failed call to the service: a non-2xx
// response, or a transport failure (StatusCode 0).
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:509] + "..."
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NotFoundError reports that a named board or column does not exist.
type NotFoundError struct {
	Kind      string // "board" | "column"
	Name      string
	Scope     string
	Available []string
}

func (e *NotFoundError) Error() string {
	quoted := make([]string, len(e.Available))
	for i, n := range e.Available {
		quoted[i] = "'" + n + "'"
	}
	return fmt.Sprintf("%s '%s' not found for %s. Available: [%s]",
		e.Kind, e.Name, e.Scope, strings.Join(quoted, ", "))
}
