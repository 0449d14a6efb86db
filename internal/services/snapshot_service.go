// Package services orchestrates snapshot persistence across the local
// store and the AMQP notification channel.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/snapshot"
)

// Publisher announces saved snapshots to the mirror worker.
type Publisher interface {
	PublishSnapshotSaved(ctx context.Context, userID string, rev int64) error
}

// Revisioned is implemented by stores that track a save counter per user.
type Revisioned interface {
	Rev(ctx context.Context, userID string) (int64, error)
}

// SnapshotService implements snapshot.Gateway. Saves go to the local store
// first; the notification to the mirror worker is best effort and never
// fails the save.
type SnapshotService struct {
	store     snapshot.Gateway
	publisher Publisher
}

func NewSnapshotService(store snapshot.Gateway, publisher Publisher) *SnapshotService {
	return &SnapshotService{
		store:     store,
		publisher: publisher,
	}
}

func (s *SnapshotService) Save(ctx context.Context, userID string, snap snapshot.Snapshot) error {
	if err := s.store.Save(ctx, userID, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := s.publishSaved(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish snapshot saved message",
			"user_id", userID, "error", err)
		// Don't fail the request, the snapshot is saved locally.
	}

	return nil
}

func (s *SnapshotService) Load(ctx context.Context, userID string) (*snapshot.Snapshot, error) {
	return s.store.Load(ctx, userID)
}

func (s *SnapshotService) publishSaved(ctx context.Context, userID string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping snapshot saved message")
		return nil
	}

	var rev int64
	if r, ok := s.store.(Revisioned); ok {
		var err error
		rev, err = r.Rev(ctx, userID)
		if err != nil {
			return fmt.Errorf("read snapshot rev: %w", err)
		}
	}

	return s.publisher.PublishSnapshotSaved(ctx, userID, rev)
}
