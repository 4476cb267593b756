package calendar

import (
	"fmt"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

// Phase is the position of a Selection in its start/end cycle.
type Phase int

const (
	AwaitingStart Phase = iota
	AwaitingEnd
	Complete
)

func (p Phase) String() string {
	switch p {
	case AwaitingStart:
		return "AWAITING_START"
	case AwaitingEnd:
		return "AWAITING_END"
	case Complete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SelectionState is a snapshot of the range being picked. Start and End are
// zero until set.
type SelectionState struct {
	Start          models.Date `json:"start"`
	End            models.Date `json:"end"`
	Phase          Phase       `json:"phase"`
	SelectingStart bool        `json:"selecting_start"`
	Nights         int         `json:"nights"`
}

// Selection drives two-press range picking over a fixed set of blocked
// ranges. A Selection belongs to one user session and is not safe for
// concurrent use.
type Selection struct {
	ranges        []models.BlockedRange
	minSelectable models.Date
	minNights     int

	start models.Date
	end   models.Date
	phase Phase
}

// NewSelection builds an engine. Days before minSelectable can never be
// pressed; minNights of 0 disables the minimum-stay rule.
func NewSelection(ranges []models.BlockedRange, minSelectable models.Date, minNights int) *Selection {
	if minNights < 0 {
		minNights = 0
	}
	return &Selection{
		ranges:        ranges,
		minSelectable: minSelectable,
		minNights:     minNights,
	}
}

// Press applies a day press and reports whether the state advanced. Rejected
// presses leave the state untouched.
func (s *Selection) Press(day models.Date) bool {
	if !s.IsSelectable(day) {
		return false
	}

	switch s.phase {
	case AwaitingEnd:
		start, end := s.start, day
		if end.Before(start) {
			start, end = end, start
		}
		if !s.ValidRange(start, end) {
			return false
		}
		s.start, s.end = start, end
		s.phase = Complete
	default:
		// AwaitingStart, or Complete where any press starts over.
		s.start = day
		s.end = models.Date{}
		s.phase = AwaitingEnd
	}
	return true
}

// Reset returns the engine to AwaitingStart.
func (s *Selection) Reset() {
	s.start, s.end = models.Date{}, models.Date{}
	s.phase = AwaitingStart
}

// State returns the current selection.
func (s *Selection) State() SelectionState {
	return SelectionState{
		Start:          s.start,
		End:            s.end,
		Phase:          s.phase,
		SelectingStart: s.phase != AwaitingEnd,
		Nights:         s.Nights(),
	}
}

// Nights is the length of a completed selection, or 0.
func (s *Selection) Nights() int {
	if s.phase != Complete {
		return 0
	}
	return s.start.DaysUntil(s.end)
}

// IsBlocked reports whether day falls inside any blocked range.
func (s *Selection) IsBlocked(day models.Date) bool {
	return models.IsBlocked(s.ranges, day)
}

// IsSelectable reports whether day may be pressed at all.
func (s *Selection) IsSelectable(day models.Date) bool {
	if day.IsZero() || day.Before(s.minSelectable) {
		return false
	}
	return !s.IsBlocked(day)
}

// ValidRange checks a candidate [start, end] against the blocked ranges and
// the minimum stay.
func (s *Selection) ValidRange(start, end models.Date) bool {
	if end.Before(start) || start.Before(s.minSelectable) {
		return false
	}
	if s.minNights > 0 && start.DaysUntil(end) < s.minNights {
		return false
	}
	for _, r := range s.ranges {
		if r.Overlaps(start, end) {
			return false
		}
	}
	return true
}

// Apply replays presses in order and returns the resulting state together
// with the indexes of presses that were rejected.
func (s *Selection) Apply(days []models.Date) (SelectionState, []int) {
	var rejected []int
	for i, d := range days {
		if !s.Press(d) {
			rejected = append(rejected, i)
		}
	}
	return s.State(), rejected
}
