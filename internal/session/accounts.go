package session

import (
	"context"
	"fmt"
	"strings"

	"budget/internal/snapshot"
)

// Accounts returns the partition list in creation order.
func (s *Session) Accounts() []snapshot.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]snapshot.Account(nil), s.accounts...)
}

// ActiveAccount returns the metadata of the active partition.
func (s *Session) ActiveAccount() snapshot.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == s.activeID {
			return a
		}
	}
	return snapshot.Account{ID: s.activeID}
}

// AddAccount creates a new empty partition and switches to it. The name is
// trimmed; a blank name is a no-op.
func (s *Session) AddAccount(ctx context.Context, name string) (snapshot.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return snapshot.Account{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextAccountIDLocked()
	acc := snapshot.Account{ID: id, Name: name}
	s.accounts = append(s.accounts, acc)
	s.dormant[id] = snapshot.AccountData{}

	s.switchLocked(ctx, id)
	return acc, nil
}

// SwitchAccount makes another partition active. The live working set is
// snapshotted into its slot before the target is loaded, so no edit is
// ever lost. Switching to the active partition is a no-op.
func (s *Session) SwitchAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.activeID {
		return nil
	}
	if !s.hasAccountLocked(id) {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	s.switchLocked(ctx, id)
	return nil
}

// DeleteAccount removes a partition and all of its data. The default
// partition is protected, and the last remaining partition cannot be
// removed. Deleting the active partition falls back to the default.
func (s *Session) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == snapshot.DefaultAccountID {
		return ErrProtectedPartition
	}
	if len(s.accounts) <= 1 {
		return ErrLastPartition
	}
	idx := -1
	for i, a := range s.accounts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}

	s.accounts = append(s.accounts[:idx], s.accounts[idx+1:]...)
	delete(s.dormant, id)

	if s.activeID == id {
		// The deleted partition's working set is gone with it; load the
		// default without stashing first.
		s.materializeLocked(snapshot.DefaultAccountID)
	}
	s.saveLocked(ctx)
	return nil
}

// RenameAccount changes a partition's display name. Blank names are
// ignored; the id and data are untouched.
func (s *Session) RenameAccount(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts[i].Name = name
			s.saveLocked(ctx)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
}

// switchLocked performs the snapshot-then-load sequence: stash the live
// working set, then materialize the target partition.
func (s *Session) switchLocked(ctx context.Context, id string) {
	s.stashLocked()
	s.materializeLocked(id)
	s.saveLocked(ctx)
}

func (s *Session) hasAccountLocked(id string) bool {
	for _, a := range s.accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// nextAccountIDLocked issues ids of the form acc_N, skipping any id that
// already exists in a loaded snapshot.
func (s *Session) nextAccountIDLocked() string {
	for {
		s.accountSeq++
		id := fmt.Sprintf("acc_%d", s.accountSeq)
		if !s.hasAccountLocked(id) {
			return id
		}
	}
}
