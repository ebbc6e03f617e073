package summarizer

import "time"

const dateLayout = "2006-01-02"

// endOfDay is the last representable instant the store resolves.
const endOfDay = 24*time.Hour - time.Microsecond

// DayWindow covers the calendar day of t in loc.
func DayWindow(t time.Time, loc *time.Location) (start, end time.Time) {
	t = t.In(loc)
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(endOfDay)
}

// WeekWindow covers Monday 00:00 to Sunday 23:59:59.999999 of the week
// containing t.
func WeekWindow(t time.Time, loc *time.Location) (start, end time.Time) {
	day, _ := DayWindow(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6).Add(endOfDay)
}
