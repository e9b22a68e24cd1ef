// Package feed implements the feed adapters (C1): detecting which upstream
// job-board shape a URL speaks, extracting raw postings from the payload,
// and mapping them into a uniform internal shape. It also owns the shared
// HTTP fetch-with-retry policy and the error classification used by the
// per-tenant worker's auto-disable logic.
package feed

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/filter"
)

// Source aliases domain.Source so feed-package callers don't need a second
// import for the same concept.
type Source = domain.Source

const (
	SourceGreenhouse = domain.SourceGreenhouse
	SourceAshby      = domain.SourceAshby
	SourceUnknown    = domain.SourceUnknown
)

// DetectSource is a pure function of the feed URL's host.
func DetectSource(url string) Source {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "boards-api.greenhouse.io"):
		return SourceGreenhouse
	case strings.Contains(lower, "api.ashbyhq.com"):
		return SourceAshby
	default:
		return SourceUnknown
	}
}

// greenhousePayload mirrors the subset of the Greenhouse jobs response this
// service consumes (SPEC_FULL.md §6).
type greenhousePayload struct {
	Jobs []GreenhouseJob `json:"jobs"`
}

// GreenhouseJob is one entry of a Greenhouse board's jobs[] array.
type GreenhouseJob struct {
	ID             json.Number        `json:"id"`
	Title          string             `json:"title"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	CompanyName    string             `json:"company_name"`
	Location       greenhouseLocation `json:"location"`
	Metadata       []greenhouseMeta   `json:"metadata"`
	Content        string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseMeta struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	ValueType string `json:"value_type"`
}

// ashbyPayload covers all three documented response shapes: {jobs:[...]},
// a bare array, and {jobBoard:{jobs:[...]}}.
type ashbyPayload struct {
	Jobs     []AshbyJob `json:"jobs"`
	JobBoard *struct {
		Jobs []AshbyJob `json:"jobs"`
	} `json:"jobBoard"`
}

// AshbyJob is one entry of an Ashby job board's jobs[] array.
type AshbyJob struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	JobURL             string          `json:"jobUrl"`
	ApplyURL           string          `json:"applyUrl"`
	PublishedAt        string          `json:"publishedAt"`
	Location           string          `json:"location"`
	SecondaryLocations []AshbyLocation `json:"secondaryLocations"`
	Department         string          `json:"department"`
	Team               string          `json:"team"`
	EmploymentType     string          `json:"employmentType"`
	DescriptionHTML    string          `json:"descriptionHtml"`
	IsRemote           bool            `json:"isRemote"`
}

// AshbyLocation is one entry of AshbyJob.SecondaryLocations.
type AshbyLocation struct {
	LocationName string `json:"locationName"`
}

// RawPosting is the adapter-agnostic view over one upstream job entry,
// produced by ExtractPostings and consumed by ToUniform.
type RawPosting struct {
	Greenhouse *GreenhouseJob
	Ashby      *AshbyJob
}

// ExtractPostings decodes payload per the detected source's documented
// shape (SPEC_FULL.md §4.1): greenhouse reads jobs[]; ashby reads jobs[],
// else root array, else jobBoard.jobs[].
func ExtractPostings(source Source, payload []byte) ([]RawPosting, error) {
	switch source {
	case SourceGreenhouse:
		var body greenhousePayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("extract greenhouse postings: %w", err)
		}
		out := make([]RawPosting, 0, len(body.Jobs))
		for i := range body.Jobs {
			out = append(out, RawPosting{Greenhouse: &body.Jobs[i]})
		}
		return out, nil
	case SourceAshby:
		return extractAshbyPostings(payload)
	default:
		return nil, fmt.Errorf("extract postings: unknown source for payload")
	}
}

func extractAshbyPostings(payload []byte) ([]RawPosting, error) {
	var body ashbyPayload
	if err := json.Unmarshal(payload, &body); err == nil {
		if len(body.Jobs) > 0 {
			return wrapAshby(body.Jobs), nil
		}
		if body.JobBoard != nil {
			return wrapAshby(body.JobBoard.Jobs), nil
		}
		if body.Jobs != nil {
			return wrapAshby(body.Jobs), nil
		}
	}
	var rootArray []AshbyJob
	if err := json.Unmarshal(payload, &rootArray); err == nil {
		return wrapAshby(rootArray), nil
	}
	return nil, fmt.Errorf("extract ashby postings: no recognized shape")
}

func wrapAshby(jobs []AshbyJob) []RawPosting {
	out := make([]RawPosting, 0, len(jobs))
	for i := range jobs {
		out = append(out, RawPosting{Ashby: &jobs[i]})
	}
	return out
}

// Posting is the adapter output consumed by the filter, normalizer and
// upsert stages: every raw field C2/C3/C4 need, still unnormalized.
type Posting struct {
	UpstreamJobID  string
	Title          string
	CanonicalURL   string
	ApplyURL       string
	LocationText   string
	Remote         bool
	Source         Source
	UpdatedAt      string
	FirstPublished string
	PublishedAt    string
	BodyRaw        string
	MetadataRaw    []RawMetadataEntry
}

// RawMetadataEntry mirrors normalize.RawMetadataEntry; duplicated here to
// keep feed from importing normalize (normalize already imports domain,
// and feed stays a leaf package for the poller/worker to depend on).
type RawMetadataEntry struct {
	Name      string
	Value     any
	ValueType string
}

// ToPosting maps one RawPosting into the adapter-agnostic Posting shape.
func ToPosting(r RawPosting) Posting {
	switch {
	case r.Greenhouse != nil:
		return greenhouseToPosting(r.Greenhouse)
	case r.Ashby != nil:
		return ashbyToPosting(r.Ashby)
	default:
		return Posting{}
	}
}

func greenhouseToPosting(j *GreenhouseJob) Posting {
	meta := make([]RawMetadataEntry, 0, len(j.Metadata))
	for _, m := range j.Metadata {
		meta = append(meta, RawMetadataEntry{Name: m.Name, Value: m.Value, ValueType: m.ValueType})
	}
	return Posting{
		UpstreamJobID:  j.ID.String(),
		Title:          j.Title,
		CanonicalURL:   j.AbsoluteURL,
		ApplyURL:       j.AbsoluteURL,
		LocationText:   j.Location.Name,
		Remote:         strings.Contains(strings.ToLower(j.Location.Name), "remote"),
		Source:         SourceGreenhouse,
		UpdatedAt:      j.UpdatedAt,
		FirstPublished: j.FirstPublished,
		BodyRaw:        j.Content,
		MetadataRaw:    meta,
	}
}

func ashbyToPosting(j *AshbyJob) Posting {
	loc := j.Location
	for _, sec := range j.SecondaryLocations {
		if sec.LocationName != "" {
			loc = loc + "; " + sec.LocationName
		}
	}
	applyURL := j.ApplyURL
	if applyURL == "" {
		applyURL = j.JobURL
	}
	var meta []RawMetadataEntry
	if j.Department != "" {
		meta = append(meta, RawMetadataEntry{Name: "Department", Value: j.Department, ValueType: "short_text"})
	}
	if j.Team != "" {
		meta = append(meta, RawMetadataEntry{Name: "Team", Value: j.Team, ValueType: "short_text"})
	}
	if j.EmploymentType != "" {
		meta = append(meta, RawMetadataEntry{Name: "Employment Type", Value: j.EmploymentType, ValueType: "short_text"})
	}
	return Posting{
		UpstreamJobID: j.ID,
		Title:         j.Title,
		CanonicalURL:  j.JobURL,
		ApplyURL:      applyURL,
		LocationText:  loc,
		Remote:        j.IsRemote,
		Source:        SourceAshby,
		PublishedAt:   j.PublishedAt,
		BodyRaw:       j.DescriptionHTML,
		MetadataRaw:   meta,
	}
}

// greenhouseBoardsPath matches ".../boards-api.greenhouse.io/v1/boards/<key>/jobs"
// and the public "boards.greenhouse.io/<key>" variant.
var greenhouseBoardsPath = regexp.MustCompile(`(?i)boards(?:-api)?\.greenhouse\.io/(?:v1/boards/|embed/job_board\?for=|)([a-z0-9_-]+)`)

// ashbyBoardPath matches "api.ashbyhq.com/posting-api/job-board/<key>" and the
// public "jobs.ashbyhq.com/<key>" variant.
var ashbyBoardPath = regexp.MustCompile(`(?i)ashbyhq\.com/(?:posting-api/job-board/|)([a-z0-9_-]+)`)

// ToUniform projects a Posting down to the fields the filter pipeline (C2)
// needs to evaluate recency and location.
func ToUniform(p Posting) filter.UniformPosting {
	return filter.UniformPosting{
		UpdatedAt:      p.UpdatedAt,
		FirstPublished: p.FirstPublished,
		PublishedAt:    p.PublishedAt,
		Source:         p.Source,
		LocationText:   p.LocationText,
		IsRemote:       p.Remote,
	}
}

// CompanyKey infers the stable per-feed company slug from the feed URL and
// feed ID, per SPEC_FULL.md §4.1: the board-path segment for
// greenhouse/ashby, falling back to "hostname + feed-id slug" for anything
// else. The feed ID keeps two unmatched feeds on the same host (e.g. two
// custom careers pages both served from a shared ATS proxy) from colliding
// into a single company.
func CompanyKey(feedURL, feedID string, source Source) string {
	switch source {
	case SourceGreenhouse:
		if m := greenhouseBoardsPath.FindStringSubmatch(feedURL); len(m) == 2 {
			return strings.ToLower(m[1])
		}
	case SourceAshby:
		if m := ashbyBoardPath.FindStringSubmatch(feedURL); len(m) == 2 {
			return strings.ToLower(m[1])
		}
	}
	host := strings.ToLower(feedURL)
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	}
	if feedID == "" {
		return host
	}
	return host + "-" + strings.ToLower(feedID)
}
