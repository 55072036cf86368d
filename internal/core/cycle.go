package core

import "time"

// Period is a card statement window. Both ends are inclusive.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// InvoicePeriod returns the statement period that closes in the month of
// reference.
//
// The period ends on closingDay of the reference month at 23:59:59.999 UTC and
// starts the day after closingDay of the previous month. closingDay is clamped
// to the length of each month on its own, so a card closing on the 31st closes
// on Feb 28/29 and on Mar 31. When the previous month closes on its last day
// the period starts on the first of the reference month.
//
// Only the calendar month of reference matters; its time-of-day and day are
// ignored.
func InvoicePeriod(closingDay int, reference time.Time) Period {
	closingDay = min(max(closingDay, 1), 31)
	month := MonthOf(reference)
	prev := month.Prev()

	endDay := min(closingDay, DaysIn(month.Year, month.Month))
	end := time.Date(month.Year, time.Month(month.Month), endDay, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	prevLast := DaysIn(prev.Year, prev.Month)
	prevClose := min(closingDay, prevLast)

	var start time.Time
	if prevClose == prevLast {
		start = month.First().Time
	} else {
		start = time.Date(prev.Year, time.Month(prev.Month), prevClose+1, 0, 0, 0, 0, time.UTC)
	}

	return Period{Start: start, End: end}
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the first and last calendar day covered by the period.
func (p Period) Days() (first, last Date) {
	return DateOf(p.Start), DateOf(p.End)
}

// ValidateDayOfMonth checks a closing or due day.
func ValidateDayOfMonth(field string, day int) error {
	if day < 1 || day > 31 {
		return invalid(field, ErrInvalidDay)
	}
	return nil
}
