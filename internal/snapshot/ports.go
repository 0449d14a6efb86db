package snapshot

import "context"

// Gateway persists whole snapshots keyed by user identity. The core never
// inspects credentials; the user id is an opaque persistence key.
//
// Load returns (nil, nil) for a user with no persisted snapshot. Save
// overwrites unconditionally: last writer wins.
type Gateway interface {
	Save(ctx context.Context, userID string, snap Snapshot) error
	Load(ctx context.Context, userID string) (*Snapshot, error)
}

// Mirror receives saved snapshots on the far side of the async boundary,
// e.g. a spreadsheet audit trail. Mirroring is best-effort and never
// affects local state.
type Mirror interface {
	Push(ctx context.Context, userID string, snap Snapshot) error
}
