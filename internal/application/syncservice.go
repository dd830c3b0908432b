package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// syncConcurrency is the fixed batch size of the bulk sync: all fetches
// in a batch run in parallel and the whole batch is awaited before the
// next starts, bounding concurrent upstream connections.
const syncConcurrency = 3

// ProgressFunc receives incremental bulk-sync progress. processed is
// strictly increasing and ends at total.
type ProgressFunc func(processed, total int, message string)

// SyncResult summarizes a completed bulk sync. LastUpdated is the merge
// tier's freshness after the run, zero when unavailable.
type SyncResult struct {
	Processed   int
	Total       int
	Passages    int
	LastUpdated time.Time
}

// SyncService performs the bulk snapshot sync: it fetches every
// content-bearing notebook in bounded-concurrency batches, merge-writes
// each book into the server cache tier, and finally replaces the
// client-snapshot tier wholesale.
type SyncService struct {
	resolver  *CredentialResolver
	newClient ClientFactory
	cache     driven.BookmarkCache
	snapshot  driven.SnapshotStore
}

// NewSyncService creates a SyncService.
func NewSyncService(resolver *CredentialResolver, newClient ClientFactory, cache driven.BookmarkCache, snapshot driven.SnapshotStore) *SyncService {
	return &SyncService{
		resolver:  resolver,
		newClient: newClient,
		cache:     cache,
		snapshot:  snapshot,
	}
}

// Sync runs a full bulk sync. Individual book failures are logged and
// skipped; session expiry aborts, since every remaining fetch would fail
// the same way. progress may be nil. A snapshot write failure is returned
// to the caller but cannot corrupt the previously stored snapshot.
func (s *SyncService) Sync(ctx context.Context, supplied string, progress ProgressFunc) (SyncResult, error) {
	start := time.Now()

	cred, err := s.resolver.Resolve(ctx, supplied)
	if err != nil {
		return SyncResult{}, err
	}

	books, err := s.newClient(cred).ListNotebooks(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list notebooks: %w", err)
	}

	var targets []model.Book
	for _, b := range books {
		if b.HasContent() {
			targets = append(targets, b)
		}
	}

	total := len(targets)
	results := make([][]model.Bookmark, total)

	var mu sync.Mutex
	processed := 0
	report := func(message string) {
		mu.Lock()
		defer mu.Unlock()
		processed++
		if progress != nil {
			progress(processed, total, message)
		}
	}

	for offset := 0; offset < total; offset += syncConcurrency {
		batch := targets[offset:min(offset+syncConcurrency, total)]

		g, gctx := errgroup.WithContext(ctx)
		for i, book := range batch {
			idx := offset + i
			g.Go(func() error {
				// Each fetch gets its own session client; one client must
				// never be shared across goroutines.
				sess := &Session{client: s.newClient(cred), cache: s.cache}

				bookmarks, err := sess.FetchBookmarks(gctx, book)
				if err != nil {
					if isSessionExpired(err) {
						return err
					}
					slog.Warn("sync skipped book", "title", book.Title, "error", err)
					report(fmt.Sprintf("Skipped %s", book.Title))
					return nil
				}

				results[idx] = bookmarks
				report(fmt.Sprintf("Synced %s (%d passages)", book.Title, len(bookmarks)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return SyncResult{Processed: processed, Total: total}, err
		}
	}

	var all []model.Bookmark
	for _, r := range results {
		all = append(all, r...)
	}
	all = model.DedupBookmarks(all)

	result := SyncResult{Processed: processed, Total: total, Passages: len(all)}

	if err := s.snapshot.Replace(ctx, all); err != nil {
		return result, fmt.Errorf("write snapshot: %w", err)
	}

	if ts, err := s.cache.LastUpdated(ctx); err == nil {
		result.LastUpdated = ts
	}

	slog.Info("bulk sync complete",
		"books", total,
		"passages", len(all),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}
