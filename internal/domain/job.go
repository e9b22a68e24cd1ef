package domain

import "time"

// MetadataValue is the escape hatch for upstream metadata entries, a sum of
// string | number | list<string> | {unit,amount}. Exactly one field is set.
type MetadataValue struct {
	String *string  `json:"string,omitempty"`
	Number *float64 `json:"number,omitempty"`
	List   []string `json:"list,omitempty"`
	Amount *Amount  `json:"amount,omitempty"`
}

// Amount preserves the {unit, amount} shape used for currency-valued metadata.
type Amount struct {
	Unit   string  `json:"unit"`
	Amount float64 `json:"amount"`
}

// MetadataEntry is one ordered upstream metadata[{name,value,value_type}] item.
type MetadataEntry struct {
	Name  string        `json:"name"`
	Value MetadataValue `json:"value"`
}

// Job is a posting owned by one Company within one Tenant. Identity is the
// pair (CompanyKey, UpstreamJobID).
type Job struct {
	TenantID     string `json:"tenantId" db:"tenant_id"`
	CompanyKey   string `json:"companyKey" db:"company_key"`
	UpstreamJobID string `json:"upstreamJobId" db:"upstream_job_id"`

	Title       string   `json:"title" db:"title"`
	CanonicalURL string  `json:"canonicalUrl" db:"canonical_url"`
	ApplyURL    string   `json:"applyUrl" db:"apply_url"`
	LocationText string  `json:"locationText" db:"location_text"`
	StateCodes  []string `json:"stateCodes,omitempty" db:"-"`
	Remote      bool     `json:"remote" db:"remote"`
	Source      Source   `json:"source" db:"source"`

	MetadataList []MetadataEntry          `json:"metadataList,omitempty" db:"-"`
	Metadata     map[string]MetadataValue `json:"metadata,omitempty" db:"-"`
	Body         string                   `json:"body" db:"body"`

	// Freshness timestamps. SourceUpdatedMs is the comparison key used by
	// the upsert engine's monotone-advance invariant.
	SourceUpdatedISO string    `json:"sourceUpdatedIso" db:"source_updated_iso"`
	SourceUpdatedTS  time.Time `json:"sourceUpdatedTs" db:"source_updated_ts"`
	SourceUpdatedMs  int64     `json:"sourceUpdatedMs" db:"source_updated_ms"`

	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	FirstSeenAt time.Time `json:"firstSeenAt" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"lastSeenAt" db:"last_seen_at"`

	// Saved is owned by the UI side-channel; the upsert merge leaves it
	// untouched unless Config.ResetSavedOnIngest is set.
	Saved bool `json:"saved" db:"saved"`
}

// Identity returns the document key used by the store: "companyKey__upstreamJobId".
func (j *Job) Identity() string {
	return j.CompanyKey + "__" + j.UpstreamJobID
}
