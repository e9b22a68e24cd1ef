package feed_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akash-ramasani/job-watch/internal/feed"
)

func TestDefaultHTTPFetcher_Fetch_SetsRequestHeaders(t *testing.T) {
	t.Parallel()

	var gotUserAgent, gotAccept, gotIfNoneMatch, gotIfModifiedSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		gotIfModifiedSince = r.Header.Get("If-Modified-Since")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := feed.NewHTTPFetcher(server.Client(), "job-watch/1.0")

	etag := `"previous"`
	lastModified := "Mon, 01 Jan 2024 00:00:00 GMT"
	resp, err := fetcher.Fetch(t.Context(), server.URL, &etag, &lastModified)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotUserAgent != "job-watch/1.0" {
		t.Errorf("User-Agent = %q, want job-watch/1.0", gotUserAgent)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if gotIfNoneMatch != etag {
		t.Errorf("If-None-Match = %q, want %q", gotIfNoneMatch, etag)
	}
	if gotIfModifiedSince != lastModified {
		t.Errorf("If-Modified-Since = %q, want %q", gotIfModifiedSince, lastModified)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.ETag == nil || *resp.ETag != `"abc"` {
		t.Errorf("ETag = %v, want \"abc\"", resp.ETag)
	}
}

func TestDefaultHTTPFetcher_Fetch_NotModifiedSkipsBodyRead(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	fetcher := feed.NewHTTPFetcher(server.Client(), "job-watch/1.0")

	resp, err := fetcher.Fetch(t.Context(), server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("StatusCode = %d, want 304", resp.StatusCode)
	}
	if resp.Body != "" {
		t.Errorf("Body = %q, want empty for 304", resp.Body)
	}
}
