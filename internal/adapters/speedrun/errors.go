package speedrun

import (
	"errors"
	"fmt"
)

// Error kinds reported by Kind().
const (
	KindConnection = "connection"
	KindUpstream   = "upstream"
	KindHTTPStatus = "http_status"
)

// ErrDecode wraps a response body that is not the expected JSON shape.
var ErrDecode = errors.New("decode speedrun.com response")

// ConnectionError is a transport failure. It is never retried.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("can't establish connection to speedrun.com (%s): %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Kind implements model.KindError.
func (*ConnectionError) Kind() string { return KindConnection }

// UpstreamError is an error envelope returned by the API, such as an
// unknown user or a rate limit notice.
type UpstreamError struct {
	URL     string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%d (speedrun.com): %s", e.Status, e.Message)
}

// Kind implements model.KindError.
func (*UpstreamError) Kind() string { return KindUpstream }

// HTTPStatusError is a non-2xx response. Retryable ones are only surfaced
// when a retry ceiling is configured and reached.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Retryable  bool
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTPError %d fetching %s", e.StatusCode, e.URL)
}

// Kind implements model.KindError.
func (*HTTPStatusError) Kind() string { return KindHTTPStatus }

func isRetryable(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.Retryable
}
