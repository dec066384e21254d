package feed

import (
	"fmt"

	"quotearchiver/internal/model"
)

// FetchError is returned for any failed supplementary-feed request: a
// transport failure, a timeout, or a status outside 2xx. It matches
// model.ErrFetch with errors.Is, and model.ErrTimeout when it timed out.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func (e *FetchError) Is(target error) bool {
	return target == model.ErrFetch || (e.Timeout && target == model.ErrTimeout)
}

// NewStatusError reports a response outside the 2xx range.
func NewStatusError(url string, statusCode int) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("unexpected HTTP %d", statusCode),
	}
}

// NewTransportError reports a request that produced no response.
func NewTransportError(url string, cause error, timedOut bool) *FetchError {
	msg := "request failed"
	if timedOut {
		msg = "request timed out"
	}
	return &FetchError{
		URL:     url,
		Timeout: timedOut,
		Message: msg,
		Cause:   cause,
	}
}
