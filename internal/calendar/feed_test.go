package calendar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;VALUE=DATE:20260301\r\n" +
	"DTEND;VALUE=DATE:20260305\r\n" +
	"SUMMARY:Reserved\\, owner stay\r\n" +
	"UID:abc@airbnb.com\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20260310T140000Z\r\n" +
	"DTEND:20260312T100000Z\r\n" +
	"SUMMARY:Airbnb (Not avail\r\n" +
	" able)\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseSingleEventWithoutSummary(t *testing.T) {
	text := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nDTSTART:20260215\nDTEND:20260222\nEND:VEVENT\nEND:VCALENDAR\n"

	ranges := Parse(text)
	require.Len(t, ranges, 1)
	assert.Equal(t, "2026-02-15", ranges[0].Start.String())
	assert.Equal(t, "2026-02-22", ranges[0].End.String())
	assert.Empty(t, ranges[0].Summary)
}

func TestParseHandlesParamsTimesAndFolding(t *testing.T) {
	ranges := Parse(sampleFeed)
	require.Len(t, ranges, 2)

	assert.Equal(t, models.NewDate(2026, 3, 1), ranges[0].Start)
	assert.Equal(t, models.NewDate(2026, 3, 5), ranges[0].End)
	assert.Equal(t, "Reserved, owner stay", ranges[0].Summary)

	assert.Equal(t, models.NewDate(2026, 3, 10), ranges[1].Start)
	assert.Equal(t, models.NewDate(2026, 3, 12), ranges[1].End)
	assert.Equal(t, "Airbnb (Not available)", ranges[1].Summary)
}

func TestParseIsIdempotent(t *testing.T) {
	assert.Equal(t, Parse(sampleFeed), Parse(sampleFeed))
}

func TestParseFeedDropsIncompleteBlocks(t *testing.T) {
	text := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"DTSTART:20260101",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTEND:20260102",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:2026-01-05",
		"DTEND:20260107",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:20260120",
		"DTEND:20260110",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:20260201",
		"DTEND:20260203",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:20260301",
		"END:VCALENDAR",
	}, "\n")

	result := ParseFeed(text)
	require.Len(t, result.Ranges, 1)
	assert.Equal(t, models.NewDate(2026, 2, 1), result.Ranges[0].Start)
	assert.Equal(t, 5, result.Dropped)
}

func TestParseUnclosedBlockIsDroppedWhenNextBegins(t *testing.T) {
	text := "BEGIN:VEVENT\nDTSTART:20260101\nDTEND:20260102\nBEGIN:VEVENT\nDTSTART:20260110\nDTEND:20260111\nEND:VEVENT\n"

	result := ParseFeed(text)
	require.Len(t, result.Ranges, 1)
	assert.Equal(t, models.NewDate(2026, 1, 10), result.Ranges[0].Start)
	assert.Equal(t, 1, result.Dropped)
}

func TestParseFieldsOutsideEventsAreIgnored(t *testing.T) {
	text := "DTSTART:20260101\nDTEND:20260102\nBEGIN:VTIMEZONE\nDTSTART:19700101\nEND:VTIMEZONE\n"
	assert.Empty(t, Parse(text))
}

func TestParseMalformedInputYieldsEmpty(t *testing.T) {
	for _, text := range []string{"", "<html>503 Service Unavailable</html>", ":::", "\x00\x01\x02", "BEGIN:VEVENT"} {
		ranges := Parse(text)
		assert.NotNil(t, ranges)
		assert.Empty(t, ranges, "input %q", text)
	}
}

func TestParseQuotedParamColon(t *testing.T) {
	text := "BEGIN:VEVENT\nDTSTART;TZID=\"Europe/Paris:Central\":20260401T120000\nDTEND;VALUE=DATE:20260402\nEND:VEVENT\n"

	ranges := Parse(text)
	require.Len(t, ranges, 1)
	assert.Equal(t, models.NewDate(2026, 4, 1), ranges[0].Start)
}
