// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxErrorBody caps how much of a failed response body is retained on the
// error for diagnostics.
const maxErrorBody = 4 << 10

// AuthError reports an authentication or authorization rejection
// (HTTP 401 or 403). It is never retried; the credential will not get
// better on its own.
type AuthError struct {
	Source     string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication rejected (status %d)", e.Source, e.StatusCode)
}

// RateLimitError reports an HTTP 429. Reset carries the portal's
// Retry-After hint when one was sent, zero otherwise.
type RateLimitError struct {
	Source string
	Reset  time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Reset > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %v", e.Source, e.Reset)
	}
	return fmt.Sprintf("%s: rate limited", e.Source)
}

// RemoteError is the catch-all for any other non-2xx response. Body holds
// up to maxErrorBody bytes of the response payload so callers can see what
// the portal actually said.
type RemoteError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: remote error (status %d)", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: remote error (status %d): %s", e.Source, e.StatusCode, e.Body)
}

// IsServiceUnavailable reports whether err is a remote 503, the portal's
// maintenance signal.
func IsServiceUnavailable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusServiceUnavailable
}

// Retryable reports whether another attempt could plausibly succeed.
// Transport failures, 429s, and 5xx responses are transient; auth
// rejections and other 4xx responses are permanent.
func Retryable(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= 500
	}
	return true
}

// ErrorFromResponse classifies a non-2xx response into a typed error,
// consuming and closing the body.
func ErrorFromResponse(source string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Source: source, StatusCode: resp.StatusCode}
	case http.StatusTooManyRequests:
		return &RateLimitError{Source: source, Reset: parseRetryAfter(resp)}
	default:
		return &RemoteError{Source: source, StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// parseRetryAfter reads the Retry-After header, which may be delay
// seconds or an HTTP date. Absent or malformed headers yield zero.
func parseRetryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
