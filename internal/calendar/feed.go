// Package calendar parses availability feeds and enforces date-range selection
// rules over the resulting blocked ranges.
package calendar

import (
	"strings"
	"time"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

const (
	beginMarker = "BEGIN"
	endMarker   = "END"
	eventBlock  = "VEVENT"

	fieldStart   = "DTSTART"
	fieldEnd     = "DTEND"
	fieldSummary = "SUMMARY"

	compactDate = "20060102"
)

// FeedResult is the outcome of a feed parse. Dropped counts event blocks that
// were discarded for missing or malformed dates.
type FeedResult struct {
	Ranges  []models.BlockedRange
	Dropped int
}

// Parse returns the blocked ranges found in an iCalendar text blob. It never
// fails: unusable blocks are dropped and garbage input yields an empty slice.
func Parse(text string) []models.BlockedRange {
	return ParseFeed(text).Ranges
}

// ParseFeed is Parse plus drop accounting.
func ParseFeed(text string) FeedResult {
	result := FeedResult{Ranges: []models.BlockedRange{}}

	var (
		inEvent bool
		current eventDraft
	)
	for _, line := range unfold(text) {
		name, value, ok := splitContentLine(line)
		if !ok {
			continue
		}

		switch name {
		case beginMarker:
			if !strings.EqualFold(value, eventBlock) {
				continue
			}
			if inEvent {
				// previous block never closed
				result.Dropped++
			}
			inEvent = true
			current = eventDraft{}
		case endMarker:
			if !strings.EqualFold(value, eventBlock) || !inEvent {
				continue
			}
			inEvent = false
			if r, ok := current.build(); ok {
				result.Ranges = append(result.Ranges, r)
			} else {
				result.Dropped++
			}
		case fieldStart:
			if inEvent {
				current.start, current.startOK = parseDay(value)
			}
		case fieldEnd:
			if inEvent {
				current.end, current.endOK = parseDay(value)
			}
		case fieldSummary:
			if inEvent {
				current.summary = unescapeText(value)
			}
		}
	}
	if inEvent {
		result.Dropped++
	}

	return result
}

type eventDraft struct {
	start, end     models.Date
	startOK, endOK bool
	summary        string
}

func (e eventDraft) build() (models.BlockedRange, bool) {
	if !e.startOK || !e.endOK || e.end.Before(e.start) {
		return models.BlockedRange{}, false
	}
	return models.BlockedRange{Start: e.start, End: e.end, Summary: strings.TrimSpace(e.summary)}, true
}

// unfold joins RFC 5545 continuation lines (leading space or tab) onto the
// previous line.
func unfold(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if raw == "" {
			continue
		}
		if (raw[0] == ' ' || raw[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

// splitContentLine splits NAME;PARAM=X:VALUE into the upper-cased name and the
// value. Colons inside quoted parameter values are skipped.
func splitContentLine(line string) (name, value string, ok bool) {
	inQuotes := false
	colon := -1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon <= 0 {
		return "", "", false
	}

	head := line[:colon]
	if semi := strings.IndexByte(head, ';'); semi >= 0 {
		head = head[:semi]
	}
	name = strings.ToUpper(strings.TrimSpace(head))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(line[colon+1:]), true
}

// parseDay reads the leading YYYYMMDD token; any time-of-day is ignored.
func parseDay(value string) (models.Date, bool) {
	if len(value) < len(compactDate) {
		return models.Date{}, false
	}
	token := value[:len(compactDate)]
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return models.Date{}, false
		}
	}
	t, err := time.Parse(compactDate, token)
	if err != nil {
		return models.Date{}, false
	}
	return models.DateOf(t), true
}

func unescapeText(value string) string {
	return strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`).Replace(value)
}
