package usage

import "time"

// CycleStart computes the start of the billing cycle containing now for a
// user who signed up at signup. The cycle is anchored to the signup
// day-of-month: that day projected onto the current year/month, rolled back
// one month when the projection is still in the future. A signup day past
// the end of the target month (e.g. the 31st in a 30-day month) clamps to
// the last valid day, so the result is always a real date and always <= now.
func CycleStart(signup, now time.Time) time.Time {
	anchor := signup.Day()

	start := dateWithClampedDay(now.Year(), now.Month(), anchor, now.Location())
	if start.After(now) {
		prev := now.AddDate(0, -1, -now.Day()+1) // first day of previous month
		start = dateWithClampedDay(prev.Year(), prev.Month(), anchor, now.Location())
	}
	return start
}

// dateWithClampedDay builds a date clamping day to the month's last valid day
func dateWithClampedDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := daysInMonth(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
