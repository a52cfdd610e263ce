// Package render draws a month grid as a terminal table.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"calgrid/internal/calendar"
	"calgrid/internal/model"
)

const cellWidth = 18

var (
	headerStyle  = color.New(color.Bold, color.FgHiWhite)
	paddingStyle = color.New(color.Faint, color.FgWhite)
	todayStyle   = color.New(color.Bold, color.FgRed)
	moreStyle    = color.New(color.Italic, color.FgWhite)
)

// Month writes grid to w: a title, a weekday header and one table row per
// week. Each in-month cell lists up to inlineLimit record labels followed
// by "+N more".
func Month(w io.Writer, grid calendar.MonthGrid, inlineLimit int) error {
	title := fmt.Sprintf("%s %d", grid.Month, grid.Year)
	if _, err := fmt.Fprintln(w, headerStyle.Sprint(title)); err != nil {
		return err
	}

	tbl := uitable.New()
	tbl.MaxColWidth = cellWidth
	tbl.Wrap = true
	tbl.Separator = " | "

	header := make([]any, 7)
	for i := range header {
		header[i] = headerStyle.Sprint(time.Weekday((int(grid.WeekStart) + i) % 7).String()[:3])
	}
	tbl.AddRow(header...)

	for _, week := range grid.Weeks {
		row := make([]any, 7)
		for i, cell := range week {
			row[i] = Cell(cell, inlineLimit)
		}
		tbl.AddRow(row...)
	}

	_, err := fmt.Fprintln(w, tbl)
	return err
}

// Cell renders one day cell as text.
func Cell(cell calendar.DayCell, inlineLimit int) string {
	label := fmt.Sprintf("%2d", cell.Date.Day)
	switch {
	case !cell.InMonth:
		return paddingStyle.Sprint(label)
	case cell.IsToday:
		label = todayStyle.Sprint(label + "*")
	}

	sum := calendar.Summarize(cell, inlineLimit)
	lines := []string{label}
	for _, r := range sum.Shown {
		lines = append(lines, Label(r))
	}
	if sum.Overflow > 0 {
		lines = append(lines, moreStyle.Sprintf("+%d more", sum.Overflow))
	}
	return strings.Join(lines, "\n")
}

// Label is the one-line text for a record: the occurrence summary when
// available, otherwise the record id.
func Label(r calendar.Record) string {
	if occ, ok := r.Payload.(*model.Occurrence); ok && occ.Summary != "" {
		if !occ.AllDay && !occ.Start.IsZero() {
			return occ.Start.Format("15:04") + " " + occ.Summary
		}
		return occ.Summary
	}
	return r.ID
}
