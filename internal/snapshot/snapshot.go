// Package snapshot defines the serializable multi-account state exchanged
// with the persistence gateway, and the gateway port itself.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"budget/internal/allocation"
	"budget/internal/core"
	"budget/internal/rules"
)

// DefaultAccountID is the partition that always exists and is never
// deletable.
const DefaultAccountID = "default"

// DefaultAccountName labels the default partition on fresh sessions.
const DefaultAccountName = "Main Account"

type (
	// Account is a partition's identity and display label.
	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// AccountData is one partition's three collections. No collection is
	// ever shared across partitions.
	AccountData struct {
		Transactions       []core.Transaction           `json:"transactions"`
		CategoryRules      []rules.Rule                 `json:"categoryRules"`
		SavingsAllocations map[int64][]allocation.Entry `json:"savingsAllocations,omitempty"`
	}

	// Snapshot is the full persisted state: the ordered partition list,
	// their collections, and the active partition id.
	Snapshot struct {
		Accounts        []Account              `json:"accounts"`
		AccountsData    map[string]AccountData `json:"accountsData"`
		ActiveAccountID string                 `json:"activeAccountId"`
		LastUpdated     time.Time              `json:"lastUpdated"`
	}
)

// Empty returns the initial state of a fresh user: a single default
// partition with empty collections.
func Empty() Snapshot {
	return Snapshot{
		Accounts: []Account{{ID: DefaultAccountID, Name: DefaultAccountName}},
		AccountsData: map[string]AccountData{
			DefaultAccountID: {},
		},
		ActiveAccountID: DefaultAccountID,
	}
}

// Decode parses persisted snapshot bytes. Legacy documents carrying a flat
// transactions/categoryRules pair with no accountsData are migrated into a
// single default partition. Legacy rule maps lose their insertion order, so
// patterns are ordered lexicographically to keep classification
// deterministic across loads.
func Decode(data []byte) (Snapshot, error) {
	var raw struct {
		Snapshot
		Transactions  []core.Transaction `json:"transactions"`
		CategoryRules map[string]string  `json:"categoryRules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	if raw.AccountsData == nil && (raw.Transactions != nil || raw.CategoryRules != nil) {
		snap := Empty()
		snap.AccountsData[DefaultAccountID] = AccountData{
			Transactions:  raw.Transactions,
			CategoryRules: legacyRules(raw.CategoryRules),
		}
		snap.LastUpdated = raw.LastUpdated
		return snap, nil
	}

	snap := raw.Snapshot
	snap.Normalize()
	return snap, nil
}

// Normalize repairs a loaded snapshot in place: nil maps are allocated, the
// default partition is guaranteed to exist, every listed account has a data
// entry, and the active id points at a listed account.
func (s *Snapshot) Normalize() {
	if s.AccountsData == nil {
		s.AccountsData = make(map[string]AccountData)
	}
	hasDefault := false
	for _, a := range s.Accounts {
		if a.ID == DefaultAccountID {
			hasDefault = true
		}
		if _, ok := s.AccountsData[a.ID]; !ok {
			s.AccountsData[a.ID] = AccountData{}
		}
	}
	if !hasDefault {
		s.Accounts = append([]Account{{ID: DefaultAccountID, Name: DefaultAccountName}}, s.Accounts...)
		if _, ok := s.AccountsData[DefaultAccountID]; !ok {
			s.AccountsData[DefaultAccountID] = AccountData{}
		}
	}
	if _, ok := s.AccountsData[s.ActiveAccountID]; !ok || s.ActiveAccountID == "" {
		s.ActiveAccountID = DefaultAccountID
	}
}

func legacyRules(m map[string]string) []rules.Rule {
	if len(m) == 0 {
		return nil
	}
	patterns := make([]string, 0, len(m))
	for p := range m {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	out := make([]rules.Rule, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, rules.Rule{Pattern: p, Category: m[p]})
	}
	return out
}
