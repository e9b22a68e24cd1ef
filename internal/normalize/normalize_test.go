package normalize_test

import (
	"strings"
	"testing"

	"github.com/akash-ramasani/job-watch/internal/normalize"
)

func TestBody_DropsImagesAndUnwrapsTrackers(t *testing.T) {
	t.Parallel()

	raw := `<p>We build &amp; ship.</p><img src="x.png"/><a href="https://bit.ly/abc">Apply here</a><a href="https://acme.com/jobs/1">Learn more</a>`
	got := normalize.Body(raw)

	if strings.Contains(got, "<img") {
		t.Errorf("expected <img> to be dropped, got %q", got)
	}
	if strings.Contains(got, "bit.ly") {
		t.Errorf("expected tracker href to be unwrapped, got %q", got)
	}
	if !strings.Contains(got, "Apply here") {
		t.Errorf("expected tracker anchor text to be retained, got %q", got)
	}
	if !strings.Contains(got, "acme.com/jobs/1") {
		t.Errorf("expected non-tracker anchor to survive, got %q", got)
	}
	if !strings.Contains(got, "We build & ship.") {
		t.Errorf("expected entity decode, got %q", got)
	}
}

func TestBody_CapsSize(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("a", normalize.BodySizeCeiling+1000)
	got := normalize.Body(huge)
	if len([]rune(got)) > normalize.BodySizeCeiling {
		t.Errorf("body not capped: got %d runes", len([]rune(got)))
	}
}

func TestMetadata_FirstWinsOnDuplicateName(t *testing.T) {
	t.Parallel()

	list, byName := normalize.Metadata([]normalize.RawMetadataEntry{
		{Name: "Team", Value: "Platform", ValueType: "short_text"},
		{Name: "Team", Value: "Infra", ValueType: "short_text"},
		{Name: "  ", Value: "ignored", ValueType: "short_text"},
		{Name: "Salary", Value: map[string]any{"unit": "USD", "amount": 150000.0}, ValueType: "currency"},
	})

	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if byName["Team"].String == nil || *byName["Team"].String != "Platform" {
		t.Errorf("expected first value to win, got %+v", byName["Team"])
	}
	if byName["Salary"].Amount == nil || byName["Salary"].Amount.Unit != "USD" {
		t.Errorf("expected currency amount preserved, got %+v", byName["Salary"])
	}
}
