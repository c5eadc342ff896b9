package workday

import "time"

// Oracle answers workday and holiday questions for single calendar dates.
//
// Implementations look at the date part only; the time of day and the
// location of the argument are ignored.
type Oracle interface {
	// IsWorkday reports whether the date is a working day.
	IsWorkday(d time.Time) bool
	// HolidayName returns the public holiday name falling on the date, if any.
	HolidayName(d time.Time) (string, bool)
}

// NextWorkday returns the first workday strictly after d.
func NextWorkday(o Oracle, d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for !o.IsWorkday(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// PrevWorkday returns the first workday strictly before d.
func PrevWorkday(o Oracle, d time.Time) time.Time {
	prev := d.AddDate(0, 0, -1)
	for !o.IsWorkday(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}
