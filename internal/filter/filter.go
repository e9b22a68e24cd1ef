package filter

import (
	"strings"
	"time"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

// Reason classifies why a posting was or was not kept.
type Reason string

const (
	ReasonNoTimestamp  Reason = "no_timestamp"
	ReasonTooOld       Reason = "too_old"
	ReasonWrongLocation Reason = "wrong_location"
	ReasonKeep         Reason = "keep"
)

// Result is the per-posting outcome of the filter pipeline.
type Result struct {
	Keep       bool
	Reason     Reason
	StateCodes []string
	EffectiveMs int64
}

// UniformPosting is the subset of a C1-adapted posting the filter needs.
type UniformPosting struct {
	UpdatedAt     string // RFC3339; greenhouse "updated_at"
	FirstPublished string // RFC3339; greenhouse "first_published"
	PublishedAt   string // RFC3339; ashby "publishedAt"
	Source        domain.Source
	LocationText  string
	IsRemote      bool
}

// Apply runs the recency rule then, if it passes, the location rule,
// against now and window (SPEC_FULL.md §4.2).
func Apply(p UniformPosting, policy *domain.FilterPolicy, now time.Time, window time.Duration) Result {
	effectiveMs, ok := effectiveTime(p)
	if !ok {
		return Result{Keep: false, Reason: ReasonNoTimestamp}
	}
	cutoff := now.Add(-window).UnixMilli()
	if effectiveMs < cutoff {
		return Result{Keep: false, Reason: ReasonTooOld, EffectiveMs: effectiveMs}
	}

	keep, codes := matchLocation(p, policy)
	if !keep {
		return Result{Keep: false, Reason: ReasonWrongLocation, EffectiveMs: effectiveMs, StateCodes: codes}
	}
	return Result{Keep: true, Reason: ReasonKeep, EffectiveMs: effectiveMs, StateCodes: codes}
}

// effectiveTime computes the comparison key: max(updated_at, first_published)
// for greenhouse, publishedAt for ashby. Returns ok=false if absent/unparseable.
func effectiveTime(p UniformPosting) (int64, bool) {
	switch p.Source {
	case domain.SourceAshby:
		t, err := time.Parse(time.RFC3339, p.PublishedAt)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default: // greenhouse and unknown default to the greenhouse shape
		var best int64
		found := false
		for _, raw := range []string{p.UpdatedAt, p.FirstPublished} {
			if raw == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				continue
			}
			found = true
			if ms := t.UnixMilli(); ms > best {
				best = ms
			}
		}
		if !found {
			return 0, false
		}
		return best, true
	}
}

// matchLocation implements the location rule of SPEC_FULL.md §4.2.
func matchLocation(p UniformPosting, policy *domain.FilterPolicy) (bool, []string) {
	loc := strings.ToLower(p.LocationText)
	codes := extractStateCodes(p.LocationText, policy)

	if p.IsRemote && !isExcludedRemote(loc, policy) {
		return true, codes
	}
	for _, kw := range policy.USKeywords {
		if strings.Contains(loc, kw) {
			return true, codes
		}
	}
	for _, city := range policy.MajorUSCities {
		if containsWordBoundary(loc, city) {
			return true, codes
		}
	}
	if len(codes) > 0 {
		return true, codes
	}
	if strings.Contains(loc, "remote") && !isExcludedRemote(loc, policy) {
		return true, codes
	}
	return false, codes
}

// isExcludedRemote reports whether loc mentions a non-US country substring
// not overridden by US-remote phrasing.
func isExcludedRemote(loc string, policy *domain.FilterPolicy) bool {
	for _, phrase := range usRemotePhrases {
		if strings.Contains(loc, phrase) {
			return false
		}
	}
	for _, country := range policy.ExcludedCountries {
		if strings.Contains(loc, country) {
			return true
		}
	}
	return false
}

// extractStateCodes collects two-letter US state tokens with a
// non-alphanumeric boundary, plus the "Washington, D.C." -> DC special case.
func extractStateCodes(location string, policy *domain.FilterPolicy) []string {
	var out []string
	seen := map[string]struct{}{}
	if strings.Contains(strings.ToLower(location), "washington, d.c.") ||
		strings.Contains(strings.ToLower(location), "washington dc") {
		seen["DC"] = struct{}{}
		out = append(out, "DC")
	}
	for _, tok := range tokenize(location) {
		code := strings.ToUpper(tok)
		if _, ok := policy.USStateCodes[code]; ok {
			if _, dup := seen[code]; !dup {
				seen[code] = struct{}{}
				out = append(out, code)
			}
		}
	}
	return out
}

// tokenize splits on any non-alphanumeric rune, matching the "standalone
// token" boundary rule used by both state-code and city matching.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}

// containsWordBoundary reports whether needle occurs in haystack delimited
// by non-alphanumeric boundaries on both sides (or string edges).
func containsWordBoundary(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		leftOK := start == 0 || !isAlnum(rune(haystack[start-1]))
		rightOK := end == len(haystack) || !isAlnum(rune(haystack[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
