package domain

import "time"

// Company is a logical issuer derived from a Feed. CompanyKey is a pure
// function of the feed (see feed.CompanyKey) and is stable across runs.
type Company struct {
	TenantID    string    `json:"tenantId" db:"tenant_id"`
	CompanyKey  string    `json:"companyKey" db:"company_key"`
	CompanyName string    `json:"companyName" db:"company_name"`
	URL         string    `json:"url" db:"url"`
	Source      Source    `json:"source,omitempty" db:"source"`
	LastSeenAt  time.Time `json:"lastSeenAt" db:"last_seen_at"`
}
