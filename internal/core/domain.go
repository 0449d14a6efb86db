package core

import (
	"strings"
)

// Uncategorized is the sentinel category for transactions no rule matched
// and no user categorized by hand.
const Uncategorized = "Uncategorized"

// Transaction states carried through from bank exports. Rows in a reverted
// or pending state never enter a dataset.
const (
	StateCompleted = "COMPLETED"
	StateReverted  = "REVERTED"
	StatePending   = "PENDING"
)

// Transaction is the atomic data unit. IDs are creation-order tokens,
// unique within one account partition. Date is the locale string DD/MM/YYYY
// and is treated as opaque text outside of date filtering.
type Transaction struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      Money  `json:"amount"`
	Type        string `json:"type"`
	State       string `json:"state"`
}

// Excluded reports whether the transaction state keeps it out of a dataset.
func (t Transaction) Excluded() bool {
	return t.State == StateReverted || t.State == StatePending
}

// IsSavings reports whether the transaction qualifies for savings
// allocations: a positive amount under a category containing "savings".
func (t Transaction) IsSavings() bool {
	return t.Amount.Cents > 0 && strings.Contains(strings.ToLower(t.Category), "savings")
}
