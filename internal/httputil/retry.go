// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil is the resilience shell around portal calls: typed
// remote errors, bounded retry with exponential backoff, and fixed-window
// rate limiting.
package httputil

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryBaseDelay is the first backoff interval between attempts. Tests
// override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultMaxRetries = 3

// Do executes req, classifying every non-2xx response into a typed error
// and retrying transient failures up to maxRetries times. The wait between
// attempts grows exponentially from RetryBaseDelay, except that a 429
// carrying a Retry-After hint waits out the hint instead.
//
// When maxRetries is 0 the default (3) is used. Permanent failures (auth
// rejections, non-429 4xx) and retry exhaustion surface the last typed
// error unmodified. If the context is cancelled during a wait the function
// returns ctx.Err(). On success the caller owns the response body.
func Do(ctx context.Context, client *http.Client, req *http.Request, source string, maxRetries int) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = RetryBaseDelay

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			// Drains and closes the body.
			err = ErrorFromResponse(source, resp)
		}

		if attempt >= maxRetries || !Retryable(err) {
			return nil, err
		}

		wait := policy.NextBackOff()
		var limited *RateLimitError
		if errors.As(err, &limited) && limited.Reset > 0 {
			wait = limited.Reset
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
