package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readfocus/internal/application"
	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

func syncBooks(n int) []model.Book {
	books := make([]model.Book, 0, n)
	for i := 0; i < n; i++ {
		books = append(books, model.Book{
			BookID:    fmt.Sprintf("b%d", i),
			Title:     fmt.Sprintf("Book %d", i),
			NoteCount: 1,
		})
	}
	return books
}

func newSyncService(client driven.WereadClient, cache driven.BookmarkCache, snapshot driven.SnapshotStore) *application.SyncService {
	resolver := application.NewCredentialResolver(nil, "wr_vid=test")
	factory := func(model.Credential) driven.WereadClient { return client }
	return application.NewSyncService(resolver, factory, cache, snapshot)
}

func TestSync_FullRun(t *testing.T) {
	books := syncBooks(7)
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(_ context.Context, bookID string) ([]model.Bookmark, error) {
			return []model.Bookmark{{BookID: bookID, MarkText: "passage of " + bookID}}, nil
		},
	}
	cache := newMockCache()
	snapshot := &mockSnapshotStore{}

	var mu sync.Mutex
	var reports []int
	progress := func(processed, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 7, total)
		assert.NotEmpty(t, message)
		reports = append(reports, processed)
	}

	result, err := newSyncService(client, cache, snapshot).Sync(context.Background(), "", progress)
	require.NoError(t, err)

	assert.Equal(t, 7, result.Processed)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 7, result.Passages)
	assert.False(t, result.LastUpdated.IsZero())

	// One progress report per book, strictly increasing, ending at total.
	require.Len(t, reports, 7)
	for i, p := range reports {
		assert.Equal(t, i+1, p)
	}

	// Every book was merge-written and the snapshot replaced wholesale.
	assert.Equal(t, 7, cache.mergeCount())
	stored, _, err := snapshot.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 7)
}

func TestSync_BoundedConcurrency(t *testing.T) {
	books := syncBooks(7)

	var inFlight, peak atomic.Int64
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(_ context.Context, bookID string) ([]model.Bookmark, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return []model.Bookmark{{BookID: bookID, MarkText: bookID}}, nil
		},
	}

	_, err := newSyncService(client, newMockCache(), &mockSnapshotStore{}).Sync(context.Background(), "", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestSync_SkipsEmptyBooks(t *testing.T) {
	books := []model.Book{
		{BookID: "rich", Title: "Has Notes", NoteCount: 3},
		{BookID: "empty", Title: "No Notes"},
	}
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(_ context.Context, bookID string) ([]model.Bookmark, error) {
			assert.Equal(t, "rich", bookID)
			return []model.Bookmark{{BookID: bookID, MarkText: "text"}}, nil
		},
	}

	result, err := newSyncService(client, newMockCache(), &mockSnapshotStore{}).Sync(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestSync_BookFailureIsSkipped(t *testing.T) {
	books := syncBooks(3)
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(_ context.Context, bookID string) ([]model.Bookmark, error) {
			if bookID == "b1" {
				return nil, errors.New("flaky upstream")
			}
			return []model.Bookmark{{BookID: bookID, MarkText: "passage of " + bookID}}, nil
		},
	}
	snapshot := &mockSnapshotStore{}

	result, err := newSyncService(client, newMockCache(), snapshot).Sync(context.Background(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Passages)
}

func TestSync_SessionExpiryAborts(t *testing.T) {
	books := syncBooks(7)
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(context.Context, string) ([]model.Bookmark, error) {
			return nil, driven.ErrSessionExpired
		},
	}
	snapshot := &mockSnapshotStore{}

	_, err := newSyncService(client, newMockCache(), snapshot).Sync(context.Background(), "", nil)
	assert.ErrorIs(t, err, driven.ErrSessionExpired)

	// The previous snapshot is left untouched on abort.
	stored, _, loadErr := snapshot.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Nil(t, stored)
}

func TestSync_DedupAcrossBooks(t *testing.T) {
	books := syncBooks(2)
	client := &mockWereadClient{
		listNotebooks: func(context.Context) ([]model.Book, error) { return books, nil },
		listBookmarks: func(_ context.Context, bookID string) ([]model.Bookmark, error) {
			// The same text in different books is two distinct passages.
			return []model.Bookmark{{BookID: bookID, MarkText: "identical text"}}, nil
		},
	}

	result, err := newSyncService(client, newMockCache(), &mockSnapshotStore{}).Sync(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Passages)
}

func TestSync_NoCredential(t *testing.T) {
	svc := application.NewSyncService(
		application.NewCredentialResolver(nil, ""),
		func(model.Credential) driven.WereadClient { return &mockWereadClient{} },
		newMockCache(),
		&mockSnapshotStore{},
	)

	_, err := svc.Sync(context.Background(), "", nil)
	assert.ErrorIs(t, err, driven.ErrCredentialUnavailable)
}
