package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akash-ramasani/job-watch/internal/infra/retry"
)

// FetchResponse is the outcome of one HTTP GET against an upstream feed URL.
type FetchResponse struct {
	StatusCode   int
	Body         string
	ETag         *string
	LastModified *string
}

// HTTPFetcher performs a single conditional GET against a feed URL.
type HTTPFetcher interface {
	Fetch(ctx context.Context, url string, etag, lastModified *string) (*FetchResponse, error)
}

// retryableStatus mirrors SPEC_FULL.md §4.5: 408, 425, 429 and the 5xx range
// are retried; everything else (2xx/3xx/4xx outside those codes) is not.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return status >= 500 && status <= 599
}

type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("http status %d", e.status) }

// FetchWithRetry performs a conditional GET with up to 3 attempts total and
// exponential backoff starting at base, retrying on network failures and the
// status codes retryableStatus names (SPEC_FULL.md §4.5).
func FetchWithRetry(ctx context.Context, fetcher HTTPFetcher, url string, etag, lastModified *string, base time.Duration) (*FetchResponse, error) {
	var resp *FetchResponse

	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: base,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return retryableStatus(se.status)
			}
			return retry.DefaultIsRetryable(err)
		},
	}

	err := retry.Retry(ctx, cfg, func() error {
		r, fetchErr := fetcher.Fetch(ctx, url, etag, lastModified)
		if fetchErr != nil {
			return fetchErr
		}
		if r.StatusCode >= 400 && r.StatusCode != http.StatusNotModified {
			return &statusError{status: r.StatusCode}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ClassifyFetchError converts an error returned by FetchWithRetry into a
// PollError for the per-feed error classification/auto-disable logic (§7):
// an exhausted HTTP status attempt classifies by status code, anything else
// (timeout, DNS, connection reset) classifies as a network error.
func ClassifyFetchError(err error, url string) *PollError {
	var se *statusError
	if errors.As(err, &se) {
		return ClassifyHTTPStatus(se.status, url)
	}
	return ClassifyNetworkError(err, url)
}
