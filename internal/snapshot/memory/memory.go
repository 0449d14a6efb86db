// Package memory provides the in-memory snapshot gateway used as the
// default backend and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"budget/internal/snapshot"
)

// Store keeps the marshaled snapshot per user. Storing bytes rather than
// the struct keeps loads isolated from later mutation by the caller.
type Store struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Save marshals and stores the snapshot under the user id.
func (s *Store) Save(_ context.Context, userID string, snap snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = data
	return nil
}

// Load returns the user's last saved snapshot, or (nil, nil) when none
// exists.
func (s *Store) Load(_ context.Context, userID string) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	data, ok := s.docs[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SeedRaw stores raw document bytes for a user, bypassing marshaling. Used
// to exercise legacy document migration.
func (s *Store) SeedRaw(userID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = append([]byte(nil), data...)
}
