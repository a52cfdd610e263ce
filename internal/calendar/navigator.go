package calendar

import (
	"fmt"
	"time"
)

// Clock abstracts time.Now() so that "today" is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NavigatorState is the displayed (year, month).
type NavigatorState struct {
	Year  int
	Month time.Month
}

// StateOf returns the (year, month) containing d.
func StateOf(d Date) NavigatorState {
	return NavigatorState{Year: d.Year, Month: d.Month}
}

func (s NavigatorState) String() string {
	return fmt.Sprintf("%04d-%02d", s.Year, int(s.Month))
}

// Navigator owns the displayed month. It has a single owner and is not
// safe for concurrent use.
type Navigator struct {
	state    NavigatorState
	clock    Clock
	location *time.Location
}

// NewNavigator starts at the current month of clock in loc. A nil clock
// means RealClock, a nil loc means UTC.
func NewNavigator(clock Clock, loc *time.Location) *Navigator {
	if clock == nil {
		clock = RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	n := &Navigator{clock: clock, location: loc}
	n.Today()
	return n
}

// State returns the displayed month.
func (n *Navigator) State() NavigatorState {
	return n.state
}

// Jump displays (year, month) directly. Month must be in 1..12.
func (n *Navigator) Jump(year int, month time.Month) error {
	if !validMonth(month) {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, int(month))
	}
	n.state = NavigatorState{Year: year, Month: month}
	return nil
}

// Prev moves one month back, wrapping January into December of the prior year.
func (n *Navigator) Prev() NavigatorState {
	n.state.Month--
	if n.state.Month < time.January {
		n.state.Month = time.December
		n.state.Year--
	}
	return n.state
}

// Next moves one month forward, wrapping December into January of the next year.
func (n *Navigator) Next() NavigatorState {
	n.state.Month++
	if n.state.Month > time.December {
		n.state.Month = time.January
		n.state.Year++
	}
	return n.state
}

// Today resets to the clock's current month.
func (n *Navigator) Today() NavigatorState {
	n.state = StateOf(n.TodayDate())
	return n.state
}

// TodayDate returns the clock's current day in the navigator's zone.
func (n *Navigator) TodayDate() Date {
	return DateOf(n.clock.Now(), n.location)
}
