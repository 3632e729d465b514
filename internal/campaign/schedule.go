package campaign

import "time"

// NextRun returns the next scheduled fire time strictly after now: the next
// occurrence of weekday at hourUTC on the hour, in UTC.
func NextRun(now time.Time, weekday time.Weekday, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	daysAhead := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
