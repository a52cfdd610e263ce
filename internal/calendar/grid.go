package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidMonth is returned when a month outside 1..12 is requested.
	ErrInvalidMonth = errors.New("calendar: invalid month")
	// ErrInvalidWeekStart is returned when the week start is not a weekday.
	ErrInvalidWeekStart = errors.New("calendar: invalid week start")
)

// DayCell is one position in the month grid.
type DayCell struct {
	Date Date
	// InMonth is false for padding cells borrowed from adjacent months.
	InMonth bool
	IsToday bool
	// Records is never nil; padding cells always have none.
	Records []Record
}

// Week is one grid row.
type Week [7]DayCell

// MonthGrid covers every calendar week that intersects the month.
type MonthGrid struct {
	Year      int
	Month     time.Month
	WeekStart WeekStart
	Weeks     []Week
}

// Cells returns the grid flattened in calendar order.
func (g MonthGrid) Cells() []DayCell {
	out := make([]DayCell, 0, len(g.Weeks)*7)
	for _, w := range g.Weeks {
		out = append(out, w[:]...)
	}
	return out
}

// TotalCells returns the number of cells, always a multiple of 7.
func (g MonthGrid) TotalCells() int {
	return len(g.Weeks) * 7
}

// Cell finds the cell for d, if it is on the grid.
func (g MonthGrid) Cell(d Date) (DayCell, bool) {
	for _, w := range g.Weeks {
		for _, c := range w {
			if c.Date == d {
				return c, true
			}
		}
	}
	return DayCell{}, false
}

// GridBuilder lays out month grids.
type GridBuilder struct {
	WeekStart WeekStart
}

// LeadingPadding returns how many cells from the previous month precede
// day 1 of (year, month). The result is always in 0..6.
func (gb GridBuilder) LeadingPadding(year int, month time.Month) int {
	return gb.WeekStart.Index(Date{Year: year, Month: month, Day: 1}.Weekday())
}

// Build lays out the target month. Padding cells carry the real dates of
// the adjacent months but never any records.
func (gb GridBuilder) Build(buckets DayBuckets, target NavigatorState, today Date) (MonthGrid, error) {
	if !validMonth(target.Month) {
		return MonthGrid{}, fmt.Errorf("%w: %d", ErrInvalidMonth, int(target.Month))
	}
	if !gb.WeekStart.Valid() {
		return MonthGrid{}, fmt.Errorf("%w: %d", ErrInvalidWeekStart, int(gb.WeekStart))
	}

	first := Date{Year: target.Year, Month: target.Month, Day: 1}
	lead := gb.LeadingPadding(target.Year, target.Month)
	days := DaysIn(target.Year, target.Month)

	total := lead + days
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}

	grid := MonthGrid{
		Year:      target.Year,
		Month:     target.Month,
		WeekStart: gb.WeekStart,
		Weeks:     make([]Week, total/7),
	}

	start := first.AddDays(-lead)
	for i := 0; i < total; i++ {
		d := start.AddDays(i)
		cell := DayCell{Date: d, Records: []Record{}}
		if day := i - lead + 1; day >= 1 && day <= days {
			cell.InMonth = true
			cell.IsToday = d == today
			if rs := buckets.Get(d); len(rs) > 0 {
				cell.Records = rs
			}
		}
		grid.Weeks[i/7][i%7] = cell
	}
	return grid, nil
}
