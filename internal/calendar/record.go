// Package calendar buckets dated records by day and lays them out as a
// month grid for display. Everything here is a pure, synchronous
// transformation; fetching records and drawing the grid belong to callers.
package calendar

import "time"

// Record is one dated item shown on the calendar.
type Record struct {
	ID string
	// Entity is the id of the owner used by MatchEntity filters
	// (a company, a calendar source, ...).
	Entity string
	// Effective is the already-resolved instant used for bucketing.
	// The zero time means the date could not be resolved.
	Effective time.Time
	// Payload is carried through untouched.
	Payload any
}

// ResolveEffective applies the usual fallback: the scheduled time when set,
// else the creation time. Both zero yields the zero time.
func ResolveEffective(scheduled, created time.Time) time.Time {
	if !scheduled.IsZero() {
		return scheduled
	}
	return created
}

type filterKind int

const (
	filterAll filterKind = iota
	filterEntity
)

// Filter selects which records take part in bucketing. The zero value
// matches everything.
type Filter struct {
	kind   filterKind
	entity string
}

// MatchAll returns a filter that keeps every record.
func MatchAll() Filter {
	return Filter{kind: filterAll}
}

// MatchEntity returns a filter that keeps records whose Entity equals id.
func MatchEntity(id string) Filter {
	return Filter{kind: filterEntity, entity: id}
}

// FilterFor maps an optional entity id to a filter: empty means MatchAll.
func FilterFor(entity string) Filter {
	if entity == "" {
		return MatchAll()
	}
	return MatchEntity(entity)
}

// Entity returns the entity id and true for MatchEntity filters.
func (f Filter) Entity() (string, bool) {
	return f.entity, f.kind == filterEntity
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	switch f.kind {
	case filterAll:
		return true
	case filterEntity:
		return r.Entity == f.entity
	default:
		panic("calendar: unknown filter kind")
	}
}

func (f Filter) String() string {
	if id, ok := f.Entity(); ok {
		return "entity:" + id
	}
	return "all"
}
