package aios

import "fmt"

// HTTPError reports that a call did not complete or its response body could
// not be decoded as JSON. HTTP status codes never produce an HTTPError.
type HTTPError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("aios %s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }
