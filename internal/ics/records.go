package ics

import (
	"calgrid/internal/calendar"
	"calgrid/internal/model"
)

// Records turns occurrences into calendar records, preserving order. The
// effective date is the occurrence start, or its creation time for events
// that had no DTSTART. Each record carries its *model.Occurrence as payload.
func Records(occs []model.Occurrence) []calendar.Record {
	out := make([]calendar.Record, 0, len(occs))
	for i := range occs {
		occ := &occs[i]
		out = append(out, calendar.Record{
			ID:        RecordID(*occ),
			Entity:    occ.Entity,
			Effective: calendar.ResolveEffective(occ.Start, occ.Created),
			Payload:   occ,
		})
	}
	return out
}

// RecordID is stable across refreshes for the same feed, event and instance.
func RecordID(occ model.Occurrence) string {
	return occ.SourceID + "/" + occ.UID + "@" + occ.InstanceKey
}
