// Package filter implements the recency and location rules (C2): given a
// uniform posting and the current wall clock, decide whether it is kept,
// and if so extract the US state codes it mentions.
package filter

import "github.com/akash-ramasani/job-watch/internal/domain"

// usStateCodes is the allow-list of two-letter US state/territory codes
// recognized as a standalone token in a location string.
var usStateCodes = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	"DC", "PR",
}

// majorUSCities is the allow-list of major US city names matched with a
// non-alphanumeric boundary, per the location rule in SPEC_FULL.md §4.2.
var majorUSCities = []string{
	"new york", "san francisco", "los angeles", "chicago", "austin",
	"seattle", "boston", "denver", "atlanta", "miami", "dallas",
	"houston", "washington", "portland", "philadelphia", "san diego",
}

// usKeywords is the allow-list substring-matched against a location string
// independent of city/state tokens.
var usKeywords = []string{"united states", "usa", "u.s.", "us-remote"}

// excludedCountries is the deny-list of non-US country substrings that
// disqualify an otherwise-"remote" posting, unless US-remote phrasing
// short-circuits the exclusion.
var excludedCountries = []string{
	"germany", "india", "canada", "uk", "united kingdom", "brazil",
	"mexico", "poland", "spain", "france", "philippines", "argentina",
	"portugal", "netherlands", "romania", "ukraine",
}

// usRemotePhrases short-circuit the exclude-list: a posting mentioning any
// of these is kept regardless of other country substrings present.
var usRemotePhrases = []string{"us-remote", "remote us", "remote - us", "remote-us"}

// DefaultPolicy returns the built-in FilterPolicy described above. It is
// built once at process init and never mutated.
func DefaultPolicy() *domain.FilterPolicy {
	codes := make(map[string]struct{}, len(usStateCodes))
	for _, c := range usStateCodes {
		codes[c] = struct{}{}
	}
	return &domain.FilterPolicy{
		USStateCodes:      codes,
		USKeywords:        usKeywords,
		MajorUSCities:      majorUSCities,
		ExcludedCountries: excludedCountries,
	}
}
