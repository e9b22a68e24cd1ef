// Package normalize implements the content normalizer (C3): a pure
// transform on raw posting HTML (entity-decode, drop images, unwrap
// tracker anchors, cap size) and the upstream metadata-list normalizer.
package normalize

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BodySizeCeiling is the fixed character ceiling the cleaned body is capped to.
const BodySizeCeiling = 120_000

// trackerDomains is the deny-list of anchor-href domains whose surrounding
// <a> tag is unwrapped (inner text retained, link dropped).
var trackerDomains = []string{
	"doubleclick.net", "googletagmanager.com", "google-analytics.com",
	"bit.ly", "click.appcast.io", "trackers.linkedin.com",
}

// Body cleans raw upstream HTML per SPEC_FULL.md §4.3: entity-decode, drop
// <img> tags, unwrap tracker anchors, cap to BodySizeCeiling runes.
func Body(raw string) string {
	if raw == "" {
		return ""
	}
	decoded := html.UnescapeString(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decoded))
	if err != nil {
		return capRunes(decoded, BodySizeCeiling)
	}

	doc.Find("img").Remove()

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if isTrackerHref(href) {
			text := sel.Text()
			sel.ReplaceWithHtml(html.EscapeString(text))
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil || out == "" {
		out, _ = doc.Html()
	}
	return capRunes(out, BodySizeCeiling)
}

func isTrackerHref(href string) bool {
	lower := strings.ToLower(href)
	for _, domain := range trackerDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

func capRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
