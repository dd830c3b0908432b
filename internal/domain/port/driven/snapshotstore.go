package driven

import (
	"context"
	"time"

	"readfocus/internal/domain/model"
)

// SnapshotStore defines the driven port for the client-snapshot cache
// tier: a single full-dataset blob written wholesale by bulk sync and read
// wholesale for zero-latency local selection.
type SnapshotStore interface {
	// Replace atomically swaps the stored snapshot for the given passage
	// set. A failed replace must leave the previous snapshot intact.
	Replace(ctx context.Context, bookmarks []model.Bookmark) error

	// Load returns the stored passage set and its write time. An empty
	// snapshot returns a nil slice and the zero time, not an error.
	Load(ctx context.Context) ([]model.Bookmark, time.Time, error)
}
