package calendar

import "time"

// View is the state of one calendar screen: which month is shown and which
// records are filtered in. Every Render recomputes buckets and grid from
// scratch; nothing is cached between calls.
type View struct {
	opts   Options
	nav    *Navigator
	filter Filter
}

// NewView returns a view on the current month with a MatchAll filter.
func NewView(opts Options, clock Clock) *View {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &View{
		opts:   opts,
		nav:    NewNavigator(clock, opts.Location),
		filter: MatchAll(),
	}
}

// Navigator exposes the view's month transitions.
func (v *View) Navigator() *Navigator { return v.nav }

// Options returns the display constants of the view.
func (v *View) Options() Options { return v.opts }

// Filter returns the active filter.
func (v *View) Filter() Filter { return v.filter }

// SetFilter replaces the active filter.
func (v *View) SetFilter(f Filter) { v.filter = f }

// Bucket groups records with the view's zone and active filter.
func (v *View) Bucket(records []Record) DayBuckets {
	return Bucketer{Location: v.opts.Location}.Bucket(records, v.filter)
}

// Render builds the grid for the displayed month.
func (v *View) Render(records []Record) (MonthGrid, DayBuckets, error) {
	buckets := v.Bucket(records)
	grid, err := GridBuilder{WeekStart: v.opts.WeekStart}.Build(buckets, v.nav.State(), v.nav.TodayDate())
	return grid, buckets, err
}

// Day returns the drill-down cell for d, which need not be in the
// displayed month.
func (v *View) Day(records []Record, d Date) DayCell {
	buckets := v.Bucket(records)
	rs := buckets.Get(d)
	if rs == nil {
		rs = []Record{}
	}
	return DayCell{
		Date:    d,
		InMonth: StateOf(d) == v.nav.State(),
		IsToday: d == v.nav.TodayDate(),
		Records: rs,
	}
}
