package feed_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/akash-ramasani/job-watch/internal/feed"
)

type stubFetcher struct {
	responses []fetchCall
	calls     int
}

type fetchCall struct {
	resp *feed.FetchResponse
	err  error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string, _, _ *string) (*feed.FetchResponse, error) {
	c := s.responses[s.calls]
	s.calls++
	return c.resp, c.err
}

func TestFetchWithRetry_RetriesOn503ThenSucceeds(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{responses: []fetchCall{
		{resp: &feed.FetchResponse{StatusCode: http.StatusServiceUnavailable}},
		{resp: &feed.FetchResponse{StatusCode: http.StatusOK, Body: "ok"}},
	}}

	resp, err := feed.FetchWithRetry(context.Background(), stub, "https://example.com/jobs", nil, nil, time.Millisecond)
	if err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if resp.Body != "ok" {
		t.Errorf("Body = %q, want %q", resp.Body, "ok")
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2", stub.calls)
	}
}

func TestFetchWithRetry_DoesNotRetryOn404(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{responses: []fetchCall{
		{resp: &feed.FetchResponse{StatusCode: http.StatusNotFound}},
		{resp: &feed.FetchResponse{StatusCode: http.StatusOK, Body: "should not reach"}},
	}}

	_, err := feed.FetchWithRetry(context.Background(), stub, "https://example.com/jobs", nil, nil, time.Millisecond)
	if err == nil {
		t.Fatal("expected error for non-retryable 404")
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", stub.calls)
	}
}

func TestFetchWithRetry_ExhaustsAttemptsOn429(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{responses: []fetchCall{
		{resp: &feed.FetchResponse{StatusCode: http.StatusTooManyRequests}},
		{resp: &feed.FetchResponse{StatusCode: http.StatusTooManyRequests}},
		{resp: &feed.FetchResponse{StatusCode: http.StatusTooManyRequests}},
	}}

	_, err := feed.FetchWithRetry(context.Background(), stub, "https://example.com/jobs", nil, nil, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if stub.calls != 3 {
		t.Errorf("calls = %d, want 3", stub.calls)
	}
}
