package watch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractSlotsFlattensInOrder(t *testing.T) {
	t.Parallel()

	result := FetchResult{
		StatusCode: 200,
		Body: []byte(`{"availabilities":[
			{"slots":["2025-06-10T09:00:00Z","2025-06-10T09:30:00Z"]},
			{"slots":[]},
			{"slots":["2025-06-11T14:00:00Z"]}
		]}`),
	}

	slots := ExtractSlots(result)
	require.Equal(t, []string{
		"2025-06-10T09:00:00Z",
		"2025-06-10T09:30:00Z",
		"2025-06-11T14:00:00Z",
	}, slots)
}

func TestExtractSlotsEmptyResult(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractSlots(FetchResult{}))
}

func TestExtractSlotsMalformedBody(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractSlots(FetchResult{Body: []byte("<html>maintenance</html>")}))
}

func TestExtractSlotsUnexpectedShape(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractSlots(FetchResult{Body: []byte(`{"results":[1,2,3]}`)}))
}

func TestDeriveIdentifierIsStable(t *testing.T) {
	t.Parallel()

	template := "https://example.com/availabilities.json?visit_motive_ids=1&agenda_ids=1&practice_ids=1&start_date=2025-06-02&limit=15"
	first := DeriveIdentifier(template)
	second := DeriveIdentifier(template)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestDeriveIdentifierIgnoresStartDate(t *testing.T) {
	t.Parallel()

	a := DeriveIdentifier("https://example.com/a.json?agenda_ids=1&start_date=2025-06-02")
	b := DeriveIdentifier("https://example.com/a.json?agenda_ids=1&start_date=2026-01-01")
	require.Equal(t, a, b)
}

func TestDeriveIdentifierDistinguishesTemplates(t *testing.T) {
	t.Parallel()

	a := DeriveIdentifier("https://example.com/a.json?agenda_ids=1")
	b := DeriveIdentifier("https://example.com/a.json?agenda_ids=2")
	require.NotEqual(t, a, b)
}

func TestDeriveIdentifierNormalizesHostCase(t *testing.T) {
	t.Parallel()

	a := DeriveIdentifier("https://EXAMPLE.com/a.json?agenda_ids=1")
	b := DeriveIdentifier("https://example.com/a.json?agenda_ids=1")
	require.Equal(t, a, b)
}
