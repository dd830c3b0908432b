package driven

import (
	"context"
	"time"

	"readfocus/internal/domain/model"
)

// BookmarkCache defines the driven port for the server-side merge cache
// tier: an append-only collection of passages keyed by (book, trimmed
// text). A non-empty read for a book short-circuits network fetch.
type BookmarkCache interface {
	// GetByBook returns all cached passages for the given book.
	GetByBook(ctx context.Context, bookID string) ([]model.Bookmark, error)

	// Merge writes passages into the cache, overwriting entries with the
	// same dedup key and preserving everything else. It never deletes.
	Merge(ctx context.Context, bookmarks []model.Bookmark) error

	// LastUpdated returns the time of the most recent merge, or the zero
	// time when the cache has never been written.
	LastUpdated(ctx context.Context) (time.Time, error)
}
