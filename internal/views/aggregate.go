package views

import (
	"sort"

	"budget/internal/allocation"
	"budget/internal/core"
)

// UnallocatedBucket labels the implicit remainder of savings transactions
// whose allocations do not cover the full amount.
const UnallocatedBucket = "Unallocated"

type (
	// Bucket is one named value in a breakdown chart, rounded to two
	// decimals for display.
	Bucket struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	// MonthPoint is one point of the monthly trend series.
	MonthPoint struct {
		Month    string  `json:"month"` // YYYY-MM
		Spending float64 `json:"spending"`
		Income   float64 `json:"income"`
	}

	// Stats are the headline numbers over the filtered set, kept at cent
	// precision; rounding is a display concern.
	Stats struct {
		Total    core.Money `json:"total"`
		Spending core.Money `json:"spending"`
		Income   core.Money `json:"income"`
	}
)

// CategoryBreakdown sums spending (absolute value of negative amounts) per
// category over the filtered set, sorted descending by total.
func CategoryBreakdown(transactions []core.Transaction) []Bucket {
	totals := make(map[string]int64)
	for _, t := range transactions {
		if t.Amount.Cents < 0 {
			totals[t.Category] += -t.Amount.Cents
		}
	}
	return sortedBuckets(totals)
}

// MonthlySeries groups the filtered set by calendar month, summing spending
// and income separately. Keys are normalized to zero-padded YYYY-MM so
// lexicographic order is calendar order; the series is ascending.
func MonthlySeries(transactions []core.Transaction) []MonthPoint {
	type sums struct{ spending, income int64 }
	monthly := make(map[string]*sums)
	for _, t := range transactions {
		parts, ok := core.SplitDate(t.Date)
		if !ok {
			continue
		}
		key := parts.MonthKey()
		s := monthly[key]
		if s == nil {
			s = &sums{}
			monthly[key] = s
		}
		if t.Amount.Cents < 0 {
			s.spending += -t.Amount.Cents
		} else {
			s.income += t.Amount.Cents
		}
	}

	out := make([]MonthPoint, 0, len(monthly))
	for key, s := range monthly {
		out = append(out, MonthPoint{
			Month:    key,
			Spending: core.Money{Cents: s.spending}.Value(),
			Income:   core.Money{Cents: s.income}.Value(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// SavingsBreakdown distributes the allocations of qualifying savings
// transactions into named buckets, plus an Unallocated bucket for positive
// remainders, sorted descending by value.
func SavingsBreakdown(transactions []core.Transaction, ledger *allocation.Ledger) []Bucket {
	totals := make(map[string]int64)
	for _, t := range transactions {
		if !t.IsSavings() {
			continue
		}
		for _, e := range ledger.Entries(t.ID) {
			totals[e.Purpose] += e.Amount.Cents
		}
		if rest := t.Amount.Cents - ledger.TotalAllocated(t.ID).Cents; rest > 0 {
			totals[UnallocatedBucket] += rest
		}
	}
	return sortedBuckets(totals)
}

// Summarize computes the headline totals over the filtered set.
func Summarize(transactions []core.Transaction) Stats {
	var s Stats
	for _, t := range transactions {
		s.Total.Cents += t.Amount.Cents
		if t.Amount.Cents < 0 {
			s.Spending.Cents += -t.Amount.Cents
		} else if t.Amount.Cents > 0 {
			s.Income.Cents += t.Amount.Cents
		}
	}
	return s
}

// DistinctCategories lists every category of the unfiltered partition,
// sorted lexicographically. Used to populate filter controls.
func DistinctCategories(transactions []core.Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range transactions {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// DistinctMonths lists every YYYY-MM present in the unfiltered partition,
// most recent first.
func DistinctMonths(transactions []core.Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range transactions {
		parts, ok := core.SplitDate(t.Date)
		if !ok {
			continue
		}
		key := parts.MonthKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// DistinctYears lists every year present in the unfiltered partition, most
// recent first.
func DistinctYears(transactions []core.Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range transactions {
		parts, ok := core.SplitDate(t.Date)
		if !ok {
			continue
		}
		if _, ok := seen[parts.Year]; ok {
			continue
		}
		seen[parts.Year] = struct{}{}
		out = append(out, parts.Year)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

func sortedBuckets(totals map[string]int64) []Bucket {
	out := make([]Bucket, 0, len(totals))
	for name, cents := range totals {
		out = append(out, Bucket{Name: name, Value: core.Money{Cents: cents}.Value()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
