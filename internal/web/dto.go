package web

import (
	"time"

	"calgrid/internal/calendar"
	"calgrid/internal/model"
)

type entitiesResponse struct {
	Entities []model.Entity `json:"entities"`
}

// monthResponse is the JSON shape of a month grid.
type monthResponse struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	WeekStart string        `json:"week_start"`
	Today     calendar.Date `json:"today"`
	Filter    string        `json:"filter"`
	// Skipped counts filtered-in records without an effective date.
	Skipped int         `json:"skipped"`
	Weeks   [][]cellDTO `json:"weeks"`
}

type cellDTO struct {
	Date     calendar.Date `json:"date"`
	InMonth  bool          `json:"in_month"`
	IsToday  bool          `json:"is_today"`
	Count    int           `json:"count"`
	Shown    []recordDTO   `json:"shown"`
	Overflow int           `json:"overflow"`
}

type dayResponse struct {
	Date    calendar.Date `json:"date"`
	IsToday bool          `json:"is_today"`
	Filter  string        `json:"filter"`
	Records []recordDTO   `json:"records"`
}

type refreshResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// recordDTO flattens a record and, for ICS-backed records, its occurrence.
type recordDTO struct {
	ID        string    `json:"id"`
	Entity    string    `json:"entity"`
	Effective time.Time `json:"effective"`

	SourceID string     `json:"source_id,omitempty"`
	Summary  string     `json:"summary,omitempty"`
	Location string     `json:"location,omitempty"`
	AllDay   bool       `json:"all_day,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

func (s *Server) monthDTO(grid calendar.MonthGrid, buckets calendar.DayBuckets, filter calendar.Filter, today calendar.Date) monthResponse {
	resp := monthResponse{
		Year:      grid.Year,
		Month:     int(grid.Month),
		WeekStart: grid.WeekStart.String(),
		Today:     today,
		Filter:    filter.String(),
		Skipped:   buckets.Skipped(),
		Weeks:     make([][]cellDTO, 0, len(grid.Weeks)),
	}
	for _, week := range grid.Weeks {
		row := make([]cellDTO, 0, len(week))
		for _, cell := range week {
			sum := calendar.Summarize(cell, s.opts.InlineLimit)
			row = append(row, cellDTO{
				Date:     cell.Date,
				InMonth:  cell.InMonth,
				IsToday:  cell.IsToday,
				Count:    len(cell.Records),
				Shown:    recordDTOs(sum.Shown),
				Overflow: sum.Overflow,
			})
		}
		resp.Weeks = append(resp.Weeks, row)
	}
	return resp
}

func recordDTOs(rs []calendar.Record) []recordDTO {
	out := make([]recordDTO, 0, len(rs))
	for _, r := range rs {
		dto := recordDTO{ID: r.ID, Entity: r.Entity, Effective: r.Effective}
		if occ, ok := r.Payload.(*model.Occurrence); ok {
			dto.SourceID = occ.SourceID
			dto.Summary = occ.Summary
			dto.Location = occ.Location
			dto.AllDay = occ.AllDay
			if !occ.Start.IsZero() {
				start, end := occ.Start, occ.End
				dto.Start, dto.End = &start, &end
			}
		}
		out = append(out, dto)
	}
	return out
}
