package calendar

import "time"

// DayBuckets groups records by calendar day. Within a day records keep the
// order in which they were handed to the Bucketer.
type DayBuckets struct {
	days    map[Date][]Record
	skipped int
}

// Get returns the records for d, or nil when the day is empty.
func (b DayBuckets) Get(d Date) []Record {
	return b.days[d]
}

// Len returns the number of non-empty days.
func (b DayBuckets) Len() int {
	return len(b.days)
}

// Total returns the number of bucketed records across all days.
func (b DayBuckets) Total() int {
	n := 0
	for _, rs := range b.days {
		n += len(rs)
	}
	return n
}

// Skipped returns how many records passed the filter but had no
// resolvable effective date.
func (b DayBuckets) Skipped() int {
	return b.skipped
}

// Bucketer truncates effective dates to days in one canonical zone.
type Bucketer struct {
	// Location is fixed for the whole dataset. Nil means UTC.
	Location *time.Location
}

// Bucket applies filter and groups the surviving records by day.
// Records with a zero Effective are left out and counted as skipped.
func (b Bucketer) Bucket(records []Record, filter Filter) DayBuckets {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}

	out := DayBuckets{days: make(map[Date][]Record)}
	for _, r := range records {
		if !filter.Match(r) {
			continue
		}
		if r.Effective.IsZero() {
			out.skipped++
			continue
		}
		key := DateOf(r.Effective, loc)
		out.days[key] = append(out.days[key], r)
	}
	return out
}
