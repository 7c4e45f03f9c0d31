package core

import "time"

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from `from` to `to`.
// Negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// AddMonths moves t by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// AddYears moves t by n years; Feb 29 lands on Feb 28 in non-leap years.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WholeYearsBetween counts completed years from start to end (never negative).
func WholeYearsBetween(start, end time.Time) int {
	years := end.Year() - start.Year()
	if end.Month() < start.Month() || (end.Month() == start.Month() && end.Day() < start.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// AgeOn returns the age in completed years of someone born on dob.
func AgeOn(dob, on time.Time) int {
	return WholeYearsBetween(dob, on)
}

// AnniversaryOnOrBefore returns the latest anniversary of start that is not after today.
func AnniversaryOnOrBefore(start, today time.Time) time.Time {
	start, today = DateOf(start), DateOf(today)
	a := AddYears(start, today.Year()-start.Year())
	if a.After(today) {
		a = AddYears(start, today.Year()-start.Year()-1)
	}
	return a
}
