// Package allocation implements the savings sub-ledger: per-transaction
// lists of named amounts carved out of a savings deposit.
package allocation

import (
	"errors"
	"strings"

	"budget/internal/core"
)

var (
	ErrEmptyPurpose     = errors.New("allocation purpose is empty")
	ErrInvalidAmount    = errors.New("allocation amount must be positive")
	ErrCapacityExceeded = errors.New("allocation exceeds transaction amount")
	ErrNoSuchAllocation = errors.New("no allocation at index")
)

// Entry is one named portion of a transaction's amount.
type Entry struct {
	Purpose string     `json:"purpose"`
	Amount  core.Money `json:"amount"`
}

// Ledger maps transaction ids to their ordered allocation lists. The
// conservation invariant — allocations never sum past the transaction's own
// amount — is checked on every write and violations are rejected, never
// clamped. Eligibility (savings category, positive amount) is the caller's
// concern.
type Ledger struct {
	entries map[int64][]Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[int64][]Entry)}
}

// FromEntries rebuilds a ledger from stored state. Empty lists are dropped.
func FromEntries(entries map[int64][]Entry) *Ledger {
	l := New()
	for id, list := range entries {
		if len(list) == 0 {
			continue
		}
		l.entries[id] = append([]Entry(nil), list...)
	}
	return l
}

// Allocate appends {purpose, amount} to the transaction's list. It fails
// without touching the ledger when the purpose is blank, the amount is not
// positive, or the running total would exceed txAmount. Comparison is on
// unrounded cents.
func (l *Ledger) Allocate(txID int64, purpose string, amount, txAmount core.Money) error {
	if strings.TrimSpace(purpose) == "" {
		return ErrEmptyPurpose
	}
	if amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if l.TotalAllocated(txID).Cents+amount.Cents > txAmount.Cents {
		return ErrCapacityExceeded
	}
	l.entries[txID] = append(l.entries[txID], Entry{Purpose: purpose, Amount: amount})
	return nil
}

// Deallocate removes the allocation at the given position. When the list
// becomes empty the transaction's key is removed entirely.
func (l *Ledger) Deallocate(txID int64, index int) error {
	list, ok := l.entries[txID]
	if !ok || index < 0 || index >= len(list) {
		return ErrNoSuchAllocation
	}
	list = append(list[:index], list[index+1:]...)
	if len(list) == 0 {
		delete(l.entries, txID)
		return nil
	}
	l.entries[txID] = list
	return nil
}

// TotalAllocated sums the allocation amounts for a transaction, zero when
// none exist.
func (l *Ledger) TotalAllocated(txID int64) core.Money {
	var cents int64
	for _, e := range l.entries[txID] {
		cents += e.Amount.Cents
	}
	return core.Money{Cents: cents}
}

// Entries returns a copy of the transaction's allocation list in order.
func (l *Ledger) Entries(txID int64) []Entry {
	list := l.entries[txID]
	if len(list) == 0 {
		return nil
	}
	return append([]Entry(nil), list...)
}

// All returns a copy of the full ledger state for snapshotting.
func (l *Ledger) All() map[int64][]Entry {
	out := make(map[int64][]Entry, len(l.entries))
	for id, list := range l.entries {
		out[id] = append([]Entry(nil), list...)
	}
	return out
}

// Drop removes every allocation of a transaction, used when the
// transaction itself is deleted.
func (l *Ledger) Drop(txID int64) {
	delete(l.entries, txID)
}

// Len returns the number of transactions carrying allocations.
func (l *Ledger) Len() int {
	return len(l.entries)
}
