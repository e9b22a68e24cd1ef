package store

import (
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

func TestDecodeJSONB_RehydratesTimestamps(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"tenantId": "t1",
		"companyKey": "acme",
		"upstreamJobId": "123",
		"title": "Engineer",
		"sourceUpdatedMs": 1700000000000,
		"createdAt": "2026-01-01T10:00:00Z",
		"firstSeenAt": "2026-01-01T10:00:00Z",
		"lastSeenAt": "2026-01-01T10:05:00Z"
	}`)

	var job domain.Job
	if err := decodeJSONB(raw, &job); err != nil {
		t.Fatalf("decodeJSONB: %v", err)
	}
	if job.TenantID != "t1" || job.CompanyKey != "acme" {
		t.Errorf("unexpected job: %+v", job)
	}
	want, _ := time.Parse(time.RFC3339, "2026-01-01T10:05:00Z")
	if !job.LastSeenAt.Equal(want) {
		t.Errorf("LastSeenAt = %v, want %v", job.LastSeenAt, want)
	}
}

func TestIsTransientSQLError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"unique violation not transient", &pq.Error{Code: "23505"}, false},
		{"non-pq error", errTestPlain{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransientSQLError(tt.err); got != tt.want {
				t.Errorf("isTransientSQLError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "40001"}) {
		t.Error("expected 40001 not to be a unique violation")
	}
}

type errTestPlain struct{}

func (errTestPlain) Error() string { return "plain error" }
