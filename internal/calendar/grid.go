package calendar

import (
	"time"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

// GridCells is the fixed size of a month view: six full weeks.
const GridCells = 42

// Cell is one day of a month grid.
type Cell struct {
	Date        models.Date `json:"date"`
	InMonth     bool        `json:"in_month"`
	Blocked     bool        `json:"blocked"`
	Selectable  bool        `json:"selectable"`
	InSelection bool        `json:"in_selection"`
	IsStart     bool        `json:"is_start"`
	IsEnd       bool        `json:"is_end"`
}

// Grid is a navigable month view.
type Grid struct {
	Year      int          `json:"year"`
	Month     time.Month   `json:"month"`
	WeekStart time.Weekday `json:"week_start"`
	Cells     []Cell       `json:"cells"`
}

// Next returns the year and month after g.
func (g Grid) Next() (int, time.Month) {
	return shiftMonth(g.Year, g.Month, 1)
}

// Prev returns the year and month before g.
func (g Grid) Prev() (int, time.Month) {
	return shiftMonth(g.Year, g.Month, -1)
}

// FirstDay is the date of the top-left cell of the grid.
func FirstDay(year int, month time.Month, weekStart time.Weekday) models.Date {
	first := models.NewDate(year, month, 1)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	return first.AddDays(-offset)
}

// Month renders the grid for year/month, annotating each cell with the
// current selection and blocked state.
func (s *Selection) Month(year int, month time.Month, weekStart time.Weekday) Grid {
	year, month = shiftMonth(year, month, 0)
	grid := Grid{
		Year:      year,
		Month:     month,
		WeekStart: weekStart,
		Cells:     make([]Cell, GridCells),
	}

	day := FirstDay(year, month, weekStart)
	for i := range grid.Cells {
		cell := Cell{
			Date:       day,
			InMonth:    day.Month() == month && day.Year() == year,
			Blocked:    s.IsBlocked(day),
			Selectable: s.IsSelectable(day),
		}
		switch s.phase {
		case AwaitingEnd:
			cell.IsStart = day.Equal(s.start)
			cell.InSelection = cell.IsStart
		case Complete:
			cell.IsStart = day.Equal(s.start)
			cell.IsEnd = day.Equal(s.end)
			cell.InSelection = !day.Before(s.start) && !day.After(s.end)
		}
		grid.Cells[i] = cell
		day = day.AddDays(1)
	}
	return grid
}

func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}
