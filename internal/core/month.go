package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var monthRefPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthRef is a calendar month, written YYYY-MM on the wire.
type MonthRef struct {
	Year  int
	Month int
}

// ParseMonthRef validates s against the strict YYYY-MM format before parsing it.
func ParseMonthRef(s string) (MonthRef, error) {
	if !monthRefPattern.MatchString(s) {
		return MonthRef{}, invalid("monthReference", ErrInvalidMonthRef)
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])
	return MonthRef{Year: year, Month: month}, nil
}

// MonthOf returns the month containing t (UTC).
func MonthOf(t time.Time) MonthRef {
	u := t.UTC()
	return MonthRef{Year: u.Year(), Month: int(u.Month())}
}

func (m MonthRef) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// First returns the first day of the month.
func (m MonthRef) First() Date {
	return NewDate(m.Year, m.Month, 1)
}

// Last returns the last day of the month.
func (m MonthRef) Last() Date {
	return NewDate(m.Year, m.Month, DaysIn(m.Year, m.Month))
}

// Prev returns the previous month.
func (m MonthRef) Prev() MonthRef {
	if m.Month == 1 {
		return MonthRef{Year: m.Year - 1, Month: 12}
	}
	return MonthRef{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month.
func (m MonthRef) Next() MonthRef {
	if m.Month == 12 {
		return MonthRef{Year: m.Year + 1, Month: 1}
	}
	return MonthRef{Year: m.Year, Month: m.Month + 1}
}
