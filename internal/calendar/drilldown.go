package calendar

// Summary is the inline preview of a day cell.
type Summary struct {
	Shown    []Record
	Overflow int
}

// Summarize returns the first limit records of cell in bucket order and how
// many were left out. A negative limit behaves like zero.
func Summarize(cell DayCell, limit int) Summary {
	if limit < 0 {
		limit = 0
	}
	n := len(cell.Records)
	if n <= limit {
		return Summary{Shown: cell.Records[:n:n]}
	}
	return Summary{
		Shown:    cell.Records[:limit:limit],
		Overflow: n - limit,
	}
}

// Select returns every record of cell for a detail view. An empty cell
// yields an empty slice, not an error.
func Select(cell DayCell) []Record {
	if cell.Records == nil {
		return []Record{}
	}
	return cell.Records
}
