// Package worker consumes snapshot-saved messages and pushes the current
// snapshot to the configured mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/snapshot"
)

// MirrorWorker reloads a user's snapshot from the local store whenever a
// saved notification arrives and forwards it to the mirror. Reloading
// instead of shipping the document in the message means stale or duplicate
// deliveries converge on the latest state.
type MirrorWorker struct {
	store  snapshot.Gateway
	mirror snapshot.Mirror
}

func NewMirrorWorker(store snapshot.Gateway, mirror snapshot.Mirror) *MirrorWorker {
	return &MirrorWorker{
		store:  store,
		mirror: mirror,
	}
}

// HandleSavedMessage processes one snapshot-saved notification.
func (w *MirrorWorker) HandleSavedMessage(ctx context.Context, msg *amqp.SnapshotSavedMessage) error {
	slog.InfoContext(ctx, "Processing snapshot saved message",
		"user_id", msg.UserID,
		"rev", msg.Rev)

	snap, err := w.store.Load(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load snapshot from store: %w", err)
	}
	if snap == nil {
		// The snapshot vanished between save and delivery; nothing to do.
		slog.WarnContext(ctx, "Snapshot not found, skipping mirror push",
			"user_id", msg.UserID, "rev", msg.Rev)
		return nil
	}

	if err := w.mirror.Push(ctx, msg.UserID, *snap); err != nil {
		return fmt.Errorf("push snapshot to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot mirrored",
		"user_id", msg.UserID,
		"rev", msg.Rev,
		"accounts", len(snap.Accounts))

	return nil
}
