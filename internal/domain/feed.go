package domain

import "time"

// Source identifies which upstream job-board shape a Feed speaks.
type Source string

const (
	SourceGreenhouse Source = "greenhouse"
	SourceAshby      Source = "ashby"
	SourceUnknown    Source = "unknown"
)

// Feed is a tenant's subscription to one upstream job-board endpoint.
// Inactive or archived feeds never contribute jobs to a run.
type Feed struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenantId" db:"tenant_id"`
	CompanyName string     `json:"company" db:"company"`
	URL         string     `json:"url" db:"url"`
	Active      bool       `json:"active" db:"active"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty" db:"archived_at"`
	Source      Source     `json:"source,omitempty" db:"source"`

	// LastError is the most recent permanent-feed error message, surfaced to
	// the UI alongside the feed. Cleared on the next successful poll.
	LastError string `json:"lastError,omitempty" db:"last_error"`

	// ErrorCounts tracks consecutive occurrences per ErrorType since the last
	// successful poll, used by the auto-disable policy (see feed.DisableThreshold).
	ErrorCounts map[string]int `json:"errorCounts,omitempty" db:"-"`
}

// Excluded reports whether the feed should be skipped by a run: inactive,
// archived, or archived-but-not-yet-flagged-inactive.
func (f *Feed) Excluded() bool {
	return !f.Active || f.ArchivedAt != nil
}
