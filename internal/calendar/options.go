package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DefaultInlineLimit is how many records a day cell previews inline.
const DefaultInlineLimit = 3

// WeekStart is the weekday shown in the first grid column.
type WeekStart time.Weekday

const (
	WeekStartSunday WeekStart = WeekStart(time.Sunday)
	WeekStartMonday WeekStart = WeekStart(time.Monday)
)

// ParseWeekStart accepts "sunday" or "monday" (case-insensitive). An empty
// string means Sunday.
func ParseWeekStart(s string) (WeekStart, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday":
		return WeekStartSunday, nil
	case "monday":
		return WeekStartMonday, nil
	default:
		return WeekStartSunday, fmt.Errorf("calendar: unknown week start %q", s)
	}
}

func (w WeekStart) String() string {
	return strings.ToLower(time.Weekday(w).String())
}

// Valid reports whether w names a weekday.
func (w WeekStart) Valid() bool {
	return w >= WeekStart(time.Sunday) && w <= WeekStart(time.Saturday)
}

// Index returns the column (0-6) of wd in a week that starts on w.
func (w WeekStart) Index(wd time.Weekday) int {
	return ((int(wd)-int(w))%7 + 7) % 7
}

// Options are the caller-supplied display constants.
type Options struct {
	WeekStart   WeekStart
	InlineLimit int
	// Location is the canonical zone used to truncate timestamps to days.
	// Nil means UTC.
	Location *time.Location
}

// DefaultOptions returns Sunday-first weeks, a preview of three records and UTC.
func DefaultOptions() Options {
	return Options{
		WeekStart:   WeekStartSunday,
		InlineLimit: DefaultInlineLimit,
		Location:    time.UTC,
	}
}
