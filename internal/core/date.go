package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateParts is the result of splitting a DD/MM/YYYY date string. Fields
// keep their textual form; year matching in filters is string-exact.
type DateParts struct {
	Day   string
	Month string
	Year  string
}

// SplitDate breaks a stored date into its parts. ok is false when any part
// is missing; such records pass date filters unconditionally rather than
// being excluded.
func SplitDate(date string) (DateParts, bool) {
	parts := strings.SplitN(date, "/", 3)
	if len(parts) < 3 {
		return DateParts{}, false
	}
	p := DateParts{Day: parts[0], Month: parts[1], Year: parts[2]}
	if p.Day == "" || p.Month == "" || p.Year == "" {
		return DateParts{}, false
	}
	return p, true
}

// MonthKey returns the zero-padded YYYY-MM key for grouping and month
// filtering. Keys sort in calendar order lexicographically.
func (p DateParts) MonthKey() string {
	m := p.Month
	if len(m) < 2 {
		m = "0" + m
	}
	return p.Year + "-" + m
}

// Calendar converts the parts to a calendar date for range comparisons.
// ok is false when any part is not numeric.
func (p DateParts) Calendar() (time.Time, bool) {
	day, err := strconv.Atoi(p.Day)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(p.Month)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(p.Year)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// FormatDate renders a calendar date in the stored DD/MM/YYYY form.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}
