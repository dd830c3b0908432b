package application_test

import (
	"context"
	"sync"
	"time"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockWereadClient struct {
	listNotebooks func(ctx context.Context) ([]model.Book, error)
	listBookmarks func(ctx context.Context, bookID string) ([]model.Bookmark, error)
	cred          model.Credential
}

func (m *mockWereadClient) ListNotebooks(ctx context.Context) ([]model.Book, error) {
	if m.listNotebooks == nil {
		return nil, nil
	}
	return m.listNotebooks(ctx)
}

func (m *mockWereadClient) ListBookmarks(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	if m.listBookmarks == nil {
		return nil, nil
	}
	return m.listBookmarks(ctx, bookID)
}

func (m *mockWereadClient) Credential() model.Credential {
	return m.cred
}

type mockCache struct {
	mu      sync.Mutex
	byBook  map[string][]model.Bookmark
	merged  [][]model.Bookmark
	mergeAt time.Time
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{byBook: make(map[string][]model.Bookmark)}
}

func (m *mockCache) GetByBook(_ context.Context, bookID string) ([]model.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byBook[bookID], nil
}

func (m *mockCache) Merge(_ context.Context, bookmarks []model.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merged = append(m.merged, bookmarks)
	m.mergeAt = time.Now()
	return nil
}

func (m *mockCache) LastUpdated(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeAt, nil
}

func (m *mockCache) mergeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.merged)
}

type mockSnapshotStore struct {
	mu        sync.Mutex
	stored    []model.Bookmark
	updatedAt time.Time
}

func (m *mockSnapshotStore) Replace(_ context.Context, bookmarks []model.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = bookmarks
	m.updatedAt = time.Now()
	return nil
}

func (m *mockSnapshotStore) Load(_ context.Context) ([]model.Bookmark, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored, m.updatedAt, nil
}

type mockSeenStore struct {
	history *model.SeenHistory
	loadErr error
	saveErr error
	saves   int
}

func (m *mockSeenStore) Load(_ context.Context) (*model.SeenHistory, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.history == nil {
		return model.NewSeenHistory(), nil
	}
	return m.history, nil
}

func (m *mockSeenStore) Save(_ context.Context, history *model.SeenHistory) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.history = history
	return nil
}

type mockCredentialSource struct {
	cookie string
	err    error
}

func (m *mockCredentialSource) Fetch(_ context.Context) (string, error) {
	return m.cookie, m.err
}

// Compile-time port satisfaction checks for the mocks.
var (
	_ driven.WereadClient     = (*mockWereadClient)(nil)
	_ driven.BookmarkCache    = (*mockCache)(nil)
	_ driven.SnapshotStore    = (*mockSnapshotStore)(nil)
	_ driven.SeenStore        = (*mockSeenStore)(nil)
	_ driven.CredentialSource = (*mockCredentialSource)(nil)
)
