package filter_test

import (
	"testing"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/filter"
)

func TestApply_RecencyGate(t *testing.T) {
	t.Parallel()

	policy := filterPolicy()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		updatedAt  string
		wantReason filter.Reason
	}{
		{"10 minutes ago kept", now.Add(-10 * time.Minute).Format(time.RFC3339), filter.ReasonKeep},
		{"90 minutes ago too old", now.Add(-90 * time.Minute).Format(time.RFC3339), filter.ReasonTooOld},
		{"missing timestamp", "", filter.ReasonNoTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := filter.UniformPosting{
				UpdatedAt:    tt.updatedAt,
				Source:       domain.SourceGreenhouse,
				LocationText: "New York, NY",
			}
			result := filter.Apply(p, policy, now, 60*time.Minute)
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestApply_LocationRule(t *testing.T) {
	t.Parallel()

	policy := filterPolicy()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute).Format(time.RFC3339)

	tests := []struct {
		name     string
		location string
		isRemote bool
		wantKeep bool
	}{
		{"explicit remote kept", "Remote", true, true},
		{"remote germany excluded", "Remote - Germany", true, false},
		{"us-remote short circuits exclusion", "Remote - US / Germany timezone", true, true},
		{"major city kept", "San Francisco, CA", false, true},
		{"state code kept", "Remote (TX)", false, true},
		{"non-us location rejected", "Berlin, Germany", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := filter.UniformPosting{
				UpdatedAt:    recent,
				Source:       domain.SourceGreenhouse,
				LocationText: tt.location,
				IsRemote:     tt.isRemote,
			}
			result := filter.Apply(p, policy, now, 60*time.Minute)
			if result.Keep != tt.wantKeep {
				t.Errorf("Keep = %v, want %v (reason=%q)", result.Keep, tt.wantKeep, result.Reason)
			}
		})
	}
}

func TestApply_AshbyUsesPublishedAt(t *testing.T) {
	t.Parallel()

	policy := filterPolicy()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	p := filter.UniformPosting{
		PublishedAt:  now.Add(-90 * time.Minute).Format(time.RFC3339),
		Source:       domain.SourceAshby,
		LocationText: "Remote - Germany",
		IsRemote:     true,
	}
	result := filter.Apply(p, policy, now, 60*time.Minute)
	if result.Reason != filter.ReasonTooOld {
		t.Errorf("Reason = %q, want %q", result.Reason, filter.ReasonTooOld)
	}
}

func filterPolicy() *domain.FilterPolicy {
	return filter.DefaultPolicy()
}
