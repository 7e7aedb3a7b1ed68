package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchErrorKind is the coarse failure class of a page fetch.
type FetchErrorKind string

const (
	KindTimeout    FetchErrorKind = "timeout"
	KindHTTPStatus FetchErrorKind = "http_status"
	KindNetwork    FetchErrorKind = "network"
)

// FetchError indicates a page could not be retrieved.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Errorf("fetch %s: %s: %w", e.URL, e.Kind, e.Err).Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrorLabel maps an error to a metrics label.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return "other"
	}

	switch fetchErr.Kind {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		switch fetchErr.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		}
		return "http_status"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "network"
}

func classifyError(url string, err error, statusCode int) *FetchError {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return &FetchError{Kind: KindHTTPStatus, URL: url, StatusCode: statusCode, Err: wrapped}
	}

	return &FetchError{Kind: KindNetwork, URL: url, Err: err}
}
