package views

import (
	"budget/internal/allocation"
	"budget/internal/core"
)

// Overview bundles the filtered set with every derived view, recomputed as
// a whole whenever transactions, allocations, or the filter change.
type Overview struct {
	Transactions []core.Transaction `json:"transactions"`
	Categories   []Bucket           `json:"categoryBreakdown"`
	Monthly      []MonthPoint       `json:"monthlySeries"`
	Savings      []Bucket           `json:"savingsBreakdown"`
	Stats        Stats              `json:"stats"`

	// Filter control values, derived from the unfiltered partition.
	AllCategories []string `json:"allCategories"`
	AllMonths     []string `json:"allMonths"`
	AllYears      []string `json:"allYears"`
}

// BuildOverview applies the filter and computes every derived view. Pure:
// identical inputs give identical results.
func BuildOverview(all []core.Transaction, ledger *allocation.Ledger, f Filter) Overview {
	filtered := Apply(all, f)
	return Overview{
		Transactions:  filtered,
		Categories:    CategoryBreakdown(filtered),
		Monthly:       MonthlySeries(filtered),
		Savings:       SavingsBreakdown(filtered, ledger),
		Stats:         Summarize(filtered),
		AllCategories: DistinctCategories(all),
		AllMonths:     DistinctMonths(all),
		AllYears:      DistinctYears(all),
	}
}
