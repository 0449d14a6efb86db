// Package session owns the multi-account state of one signed-in user: the
// partition list, the live working set of the active partition, and the
// autosave hook into the persistence gateway. All mutation goes through
// the session; rendering layers only observe it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"budget/internal/allocation"
	"budget/internal/core"
	"budget/internal/csvio"
	"budget/internal/rules"
	"budget/internal/snapshot"
	"budget/internal/views"
)

var (
	ErrProtectedPartition = errors.New("default account cannot be deleted")
	ErrLastPartition      = errors.New("last account cannot be deleted")
	ErrNoSuchAccount      = errors.New("no such account")
	ErrNoSuchTransaction  = errors.New("no such transaction")
	ErrNotSavings         = errors.New("transaction is not a savings deposit")
)

// Session is the single owner of all mutable state. One mutex confines it;
// partition switching is atomic to callers because snapshot-then-load runs
// under the same lock as every observer.
type Session struct {
	mu      sync.Mutex
	userID  string
	gateway snapshot.Gateway

	accounts []snapshot.Account
	dormant  map[string]snapshot.AccountData
	activeID string

	// Live working set of the active partition.
	txs    []core.Transaction
	engine *rules.Engine
	ledger *allocation.Ledger

	nextTxID   int64
	accountSeq int64
	editingID  int64 // in-progress row edit, cleared on switch
}

// New creates a session in the initial empty state: a single default
// partition, nothing persisted yet. The gateway may be nil for detached
// use (tests); autosave is then skipped.
func New(gateway snapshot.Gateway, userID string) *Session {
	s := &Session{
		userID:  userID,
		gateway: gateway,
	}
	s.resetLocked()
	return s
}

// Load replaces the session state with the user's last persisted snapshot.
// A fresh user (no snapshot) keeps the initial empty state. Legacy
// single-account documents are migrated by the snapshot decoder.
func (s *Session) Load(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	snap, err := s.gateway.Load(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.installLocked(*snap)
	return nil
}

// Logout discards all state and returns the session to the initial empty
// state. Nothing is persisted; the remote snapshot stays as it was.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Snapshot returns the full serializable state, with the live working set
// folded back into the active partition's slot.
func (s *Session) Snapshot() snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UserID returns the persistence key this session saves under.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) resetLocked() {
	empty := snapshot.Empty()
	s.accounts = empty.Accounts
	s.dormant = empty.AccountsData
	s.activeID = empty.ActiveAccountID
	s.txs = nil
	s.engine = rules.New()
	s.ledger = allocation.New()
	s.nextTxID = 1
	s.accountSeq = 1
	s.editingID = 0
}

// installLocked loads a decoded snapshot into the session and materializes
// the active partition's working set.
func (s *Session) installLocked(snap snapshot.Snapshot) {
	snap.Normalize()
	s.accounts = snap.Accounts
	s.dormant = snap.AccountsData
	s.activeID = snap.ActiveAccountID
	s.editingID = 0

	s.nextTxID = 1
	for _, data := range s.dormant {
		for _, t := range data.Transactions {
			if t.ID >= s.nextTxID {
				s.nextTxID = t.ID + 1
			}
		}
	}
	s.accountSeq = int64(len(s.accounts))
	s.materializeLocked(s.activeID)
}

// materializeLocked loads a partition's collections into the live working
// set. Missing partitions get empty defaults.
func (s *Session) materializeLocked(id string) {
	data := s.dormant[id]
	s.txs = append([]core.Transaction(nil), data.Transactions...)
	s.engine = rules.FromRules(data.CategoryRules)
	s.ledger = allocation.FromEntries(data.SavingsAllocations)
	s.activeID = id
	s.editingID = 0
}

// stashLocked folds the live working set back into the dormant map under
// the active id.
func (s *Session) stashLocked() {
	s.dormant[s.activeID] = snapshot.AccountData{
		Transactions:       append([]core.Transaction(nil), s.txs...),
		CategoryRules:      s.engine.Rules(),
		SavingsAllocations: s.ledger.All(),
	}
}

func (s *Session) snapshotLocked() snapshot.Snapshot {
	s.stashLocked()
	data := make(map[string]snapshot.AccountData, len(s.dormant))
	for id, d := range s.dormant {
		data[id] = d
	}
	return snapshot.Snapshot{
		Accounts:        append([]snapshot.Account(nil), s.accounts...),
		AccountsData:    data,
		ActiveAccountID: s.activeID,
		LastUpdated:     time.Now().UTC(),
	}
}

// saveLocked pushes the current snapshot through the gateway. Persistence
// failures are logged and never surface to the mutation that triggered
// them; the next mutation simply tries again.
func (s *Session) saveLocked(ctx context.Context) {
	if s.gateway == nil {
		return
	}
	snap := s.snapshotLocked()
	if err := s.gateway.Save(ctx, s.userID, snap); err != nil {
		slog.ErrorContext(ctx, "Snapshot save failed",
			"user_id", s.userID,
			"accounts", len(snap.Accounts),
			"error", err)
	}
}

func (s *Session) nextID() int64 {
	id := s.nextTxID
	s.nextTxID++
	return id
}

// --- transactions ---

// Transactions returns a copy of the active partition's unfiltered list.
func (s *Session) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...)
}

// AddTransaction prepends an empty editable transaction dated today and
// marks it as being edited.
func (s *Session) AddTransaction(ctx context.Context) core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := core.Transaction{
		ID:       s.nextID(),
		Date:     core.FormatDate(time.Now()),
		Category: core.Uncategorized,
		Type:     "Card Payment",
		State:    core.StateCompleted,
	}
	s.txs = append([]core.Transaction{t}, s.txs...)
	s.editingID = t.ID
	s.saveLocked(ctx)
	return t
}

// UpdateTransaction replaces the stored transaction with the same id. A
// manual save with a real category also overwrites the rule for the
// description, unlike learning, which never overwrites.
func (s *Session) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID != tx.ID {
			continue
		}
		s.txs[i] = tx
		if tx.Description != "" && tx.Category != "" && tx.Category != core.Uncategorized {
			s.engine.Put(tx.Description, tx.Category)
		}
		s.editingID = 0
		s.saveLocked(ctx)
		return nil
	}
	return ErrNoSuchTransaction
}

// DeleteTransaction removes a transaction and any allocations hanging off
// it.
func (s *Session) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID != id {
			continue
		}
		s.txs = append(s.txs[:i], s.txs[i+1:]...)
		s.ledger.Drop(id)
		s.saveLocked(ctx)
		return nil
	}
	return ErrNoSuchTransaction
}

// Editing returns the id of the transaction currently being edited, zero
// when none.
func (s *Session) Editing() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingID
}

// SetEditing marks a row as being edited; zero clears it.
func (s *Session) SetEditing(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editingID = id
}

// --- CSV ---

// ImportCSV destructively replaces the active partition's transaction list
// with the parsed batch. Every parsed row feeds rule-learning first, and
// allocations are reset: the old id space is gone with the old list.
func (s *Session) ImportCSV(ctx context.Context, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = csvio.Import(text, s.engine, s.nextID)
	s.ledger = allocation.New()
	s.editingID = 0
	s.saveLocked(ctx)
	return len(s.txs)
}

// ExportCSV renders the full active partition, independent of any filter.
func (s *Session) ExportCSV() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return csvio.Export(s.txs)
}

// --- rules ---

// Rules returns the active partition's rules in enumeration order.
func (s *Session) Rules() []rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Rules()
}

// AddRule adds or overwrites a rule by hand. Blank input is a no-op.
func (s *Session) AddRule(ctx context.Context, pattern, category string) {
	if strings.TrimSpace(pattern) == "" || strings.TrimSpace(category) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Put(pattern, category)
	s.saveLocked(ctx)
}

// DeleteRule removes a rule by pattern.
func (s *Session) DeleteRule(ctx context.Context, pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Delete(pattern)
	s.saveLocked(ctx)
}

// Reapply reclassifies every uncategorized transaction against the current
// rules.
func (s *Session) Reapply(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reapply(s.txs)
	s.saveLocked(ctx)
}

// --- allocations ---

// Allocate earmarks part of a savings transaction for a purpose. The
// session enforces eligibility (savings category, positive amount) before
// touching the ledger, which itself enforces conservation.
func (s *Session) Allocate(ctx context.Context, txID int64, purpose string, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.findLocked(txID)
	if !ok {
		return ErrNoSuchTransaction
	}
	if !tx.IsSavings() {
		return ErrNotSavings
	}
	if err := s.ledger.Allocate(txID, purpose, amount, tx.Amount); err != nil {
		return err
	}
	s.saveLocked(ctx)
	return nil
}

// Deallocate removes the allocation at the given position.
func (s *Session) Deallocate(ctx context.Context, txID int64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Deallocate(txID, index); err != nil {
		return err
	}
	s.saveLocked(ctx)
	return nil
}

// Allocations returns a transaction's allocation list in order.
func (s *Session) Allocations(txID int64) []allocation.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Entries(txID)
}

// TotalAllocated sums a transaction's allocations.
func (s *Session) TotalAllocated(txID int64) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TotalAllocated(txID)
}

// --- derived views ---

// Overview computes the filtered set and every derived view of the active
// partition in one consistent read.
func (s *Session) Overview(f views.Filter) views.Overview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return views.BuildOverview(s.txs, s.ledger, f)
}

func (s *Session) findLocked(id int64) (core.Transaction, bool) {
	for _, t := range s.txs {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}
