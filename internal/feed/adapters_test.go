package feed_test

import (
	"testing"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/feed"
)

func TestDetectSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want feed.Source
	}{
		{"https://boards-api.greenhouse.io/v1/boards/acme/jobs", feed.SourceGreenhouse},
		{"https://api.ashbyhq.com/posting-api/job-board/acme", feed.SourceAshby},
		{"https://example.com/careers.rss", feed.SourceUnknown},
	}
	for _, tt := range tests {
		if got := feed.DetectSource(tt.url); got != tt.want {
			t.Errorf("DetectSource(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractPostings_Greenhouse(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"jobs":[{"id":123,"title":"Engineer","absolute_url":"https://acme.com/jobs/123","updated_at":"2026-01-01T10:00:00Z","location":{"name":"Remote"}}]}`)
	postings, err := feed.ExtractPostings(feed.SourceGreenhouse, payload)
	if err != nil {
		t.Fatalf("ExtractPostings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := feed.ToPosting(postings[0])
	if p.UpstreamJobID != "123" {
		t.Errorf("UpstreamJobID = %q, want %q", p.UpstreamJobID, "123")
	}
	if p.Source != domain.SourceGreenhouse {
		t.Errorf("Source = %q, want greenhouse", p.Source)
	}
	if !p.Remote {
		t.Error("expected location 'Remote' to set Remote=true")
	}
}

func TestExtractPostings_AshbyRootArray(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"id":"abc","title":"Designer","jobUrl":"https://jobs.ashbyhq.com/acme/abc","publishedAt":"2026-01-01T09:00:00Z","isRemote":true}]`)
	postings, err := feed.ExtractPostings(feed.SourceAshby, payload)
	if err != nil {
		t.Fatalf("ExtractPostings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := feed.ToPosting(postings[0])
	if p.UpstreamJobID != "abc" || p.Source != domain.SourceAshby {
		t.Errorf("unexpected posting: %+v", p)
	}
}

func TestExtractPostings_AshbyJobBoardWrapper(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"jobBoard":{"jobs":[{"id":"xyz","title":"PM"}]}}`)
	postings, err := feed.ExtractPostings(feed.SourceAshby, payload)
	if err != nil {
		t.Fatalf("ExtractPostings: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
}

func TestCompanyKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		feedID string
		src    feed.Source
		want   string
	}{
		{"greenhouse api path", "https://boards-api.greenhouse.io/v1/boards/acme-inc/jobs", "feed-1", feed.SourceGreenhouse, "acme-inc"},
		{"ashby posting api", "https://api.ashbyhq.com/posting-api/job-board/acme", "feed-2", feed.SourceAshby, "acme"},
		{"ashby public board", "https://jobs.ashbyhq.com/acme", "feed-3", feed.SourceAshby, "acme"},
		{"fallback to host plus feed id", "https://careers.example.com/feed.json", "feed-42", feed.SourceUnknown, "careers.example.com-feed-42"},
		{"fallback to bare host when feed id is empty", "https://careers.example.com/feed.json", "", feed.SourceUnknown, "careers.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := feed.CompanyKey(tt.url, tt.feedID, tt.src); got != tt.want {
				t.Errorf("CompanyKey(%q, %q) = %q, want %q", tt.url, tt.feedID, got, tt.want)
			}
		})
	}
}

// TestCompanyKey_DistinctFeedsSameHostDoNotCollide guards the bug where two
// feeds on an unrecognized host with no feed ID component would merge into
// one company.
func TestCompanyKey_DistinctFeedsSameHostDoNotCollide(t *testing.T) {
	t.Parallel()

	a := feed.CompanyKey("https://ats.example.com/careers", "feed-a", feed.SourceUnknown)
	b := feed.CompanyKey("https://ats.example.com/careers", "feed-b", feed.SourceUnknown)
	if a == b {
		t.Fatalf("expected distinct company keys for distinct feeds on the same host, got %q for both", a)
	}
}

func TestToUniform(t *testing.T) {
	t.Parallel()

	p := feed.Posting{
		Source:       domain.SourceAshby,
		PublishedAt:  "2026-01-01T09:00:00Z",
		LocationText: "Remote",
		Remote:       true,
	}
	u := feed.ToUniform(p)
	if u.PublishedAt != p.PublishedAt || u.Source != domain.SourceAshby || !u.IsRemote {
		t.Errorf("unexpected UniformPosting: %+v", u)
	}
}
