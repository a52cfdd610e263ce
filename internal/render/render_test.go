package render_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/model"
	"calgrid/internal/render"
)

func init() {
	color.NoColor = true
}

func TestMonth(t *testing.T) {
	at := time.Date(2024, time.February, 15, 9, 0, 0, 0, time.UTC)
	records := []calendar.Record{
		{ID: "a", Effective: at, Payload: &model.Occurrence{Summary: "Sale", Start: at}},
		{ID: "b", Effective: at},
		{ID: "c", Effective: at},
		{ID: "d", Effective: at},
		{ID: "e", Effective: at},
	}
	buckets := calendar.Bucketer{}.Bucket(records, calendar.MatchAll())
	grid, err := calendar.GridBuilder{WeekStart: calendar.WeekStartMonday}.Build(
		buckets, calendar.NavigatorState{Year: 2024, Month: time.February}, calendar.Date{Year: 2024, Month: time.February, Day: 15})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render.Month(&buf, grid, 3))

	out := buf.String()
	assert.Contains(t, out, "February 2024")
	assert.Contains(t, out, "Mon")
	assert.Contains(t, out, "15*")
	assert.Contains(t, out, "09:00 Sale")
	assert.Contains(t, out, "+2 more")
	assert.NotContains(t, out, "\nd\n")
}

func TestCell_Padding(t *testing.T) {
	cell := calendar.DayCell{Date: calendar.Date{Year: 2024, Month: time.January, Day: 29}}
	assert.Equal(t, "29", render.Cell(cell, 3))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "x", render.Label(calendar.Record{ID: "x"}))
	assert.Equal(t, "Launch", render.Label(calendar.Record{ID: "x", Payload: &model.Occurrence{Summary: "Launch", AllDay: true, Start: time.Now()}}))
}
