// Package views implements the filtering and aggregation pipeline. Every
// function here is pure: the same transactions and filter always produce
// the same result, so callers may memoize freely.
package views

import (
	"strings"
	"time"

	"budget/internal/core"
)

// DateScope selects how the date part of a filter is interpreted.
type DateScope string

const (
	ScopeAll   DateScope = "all"
	ScopeYear  DateScope = "year"
	ScopeMonth DateScope = "month"
	ScopeRange DateScope = "dateRange"
)

// Filter is the full filter specification. Zero values mean "no
// restriction" for each field.
type Filter struct {
	Categories     []string  `json:"categories"`
	Description    string    `json:"description"`
	CategorySearch string    `json:"categorySearch"`
	DateScope      DateScope `json:"dateFilterType"`
	Year           string    `json:"year"`
	Month          string    `json:"month"`     // YYYY-MM, zero-padded
	StartDate      string    `json:"startDate"` // 2006-01-02
	EndDate        string    `json:"endDate"`
}

// Apply returns the transactions matching every condition of the filter.
// Records whose date cannot be split into day/month/year pass the date
// conditions unconditionally; they can only be excluded by the category and
// description conditions.
func Apply(transactions []core.Transaction, f Filter) []core.Transaction {
	var out []core.Transaction
	for _, t := range transactions {
		if matches(t, f) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t core.Transaction, f Filter) bool {
	if len(f.Categories) > 0 && !containsString(f.Categories, t.Category) {
		return false
	}
	if f.Description != "" &&
		!strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Description)) {
		return false
	}
	if f.CategorySearch != "" &&
		!strings.Contains(strings.ToLower(t.Category), strings.ToLower(f.CategorySearch)) {
		return false
	}

	parts, ok := core.SplitDate(t.Date)
	if !ok {
		return true
	}

	switch f.DateScope {
	case ScopeYear:
		if f.Year != "" && parts.Year != f.Year {
			return false
		}
	case ScopeMonth:
		if f.Month != "" && parts.MonthKey() != f.Month {
			return false
		}
	case ScopeRange:
		if f.StartDate == "" || f.EndDate == "" {
			return true
		}
		start, err1 := time.Parse("2006-01-02", f.StartDate)
		end, err2 := time.Parse("2006-01-02", f.EndDate)
		if err1 != nil || err2 != nil {
			return true
		}
		cal, ok := parts.Calendar()
		if !ok {
			return false
		}
		if cal.Before(start) || cal.After(end) {
			return false
		}
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
