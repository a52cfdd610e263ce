package model

import "time"

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion and timezone normalization. It is the payload of
// the calendar records built from ICS feeds.
type Occurrence struct {
	SourceID string // calendar source ID
	Entity   string // entity the source belongs to
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone. Start is zero
	// when the VEVENT carried no usable DTSTART.
	Start time.Time
	End   time.Time

	// Created is CREATED, or DTSTAMP when CREATED is absent.
	Created time.Time
}

// Entity is one filterable owner of records, e.g. a company or a feed.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
