package application

import (
	"context"
	"fmt"
	"log/slog"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// ClientFactory creates a session client bound to a resolved credential.
// Every request sequence gets its own client so the mutable credential
// slot is never shared between call sites.
type ClientFactory func(credential model.Credential) driven.WereadClient

// ContentService is the content aggregator: it resolves a credential,
// binds it to a session client, and serves notebooks and passages with
// the server-merge cache tier consulted before any network fetch.
type ContentService struct {
	resolver  *CredentialResolver
	newClient ClientFactory
	cache     driven.BookmarkCache
}

// NewContentService creates a ContentService.
func NewContentService(resolver *CredentialResolver, newClient ClientFactory, cache driven.BookmarkCache) *ContentService {
	return &ContentService{
		resolver:  resolver,
		newClient: newClient,
		cache:     cache,
	}
}

// Session is a credential-bound request sequence. It owns its session
// client for the duration of the sequence and must be used from a single
// goroutine.
type Session struct {
	client driven.WereadClient
	cache  driven.BookmarkCache
}

// Open resolves a credential (supplied may be empty) and returns a
// session bound to it. Returns driven.ErrCredentialUnavailable when no
// credential source yields one.
func (s *ContentService) Open(ctx context.Context, supplied string) (*Session, error) {
	cred, err := s.resolver.Resolve(ctx, supplied)
	if err != nil {
		return nil, err
	}
	return &Session{client: s.newClient(cred), cache: s.cache}, nil
}

// Notebooks returns the user's notebooks.
func (sess *Session) Notebooks(ctx context.Context) ([]model.Book, error) {
	books, err := sess.client.ListNotebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	return books, nil
}

// Bookmarks returns the passages for one book with the owning book's
// title and author attached. The merge cache is consulted first: a
// non-empty cached set short-circuits the network entirely. Fetched
// results are merged back into the cache; cache failures on either side
// are logged and never abort the operation.
func (sess *Session) Bookmarks(ctx context.Context, book model.Book) ([]model.Bookmark, error) {
	if sess.cache != nil {
		cached, err := sess.cache.GetByBook(ctx, book.BookID)
		if err != nil {
			slog.Warn("bookmark cache read failed", "book_id", book.BookID, "error", err)
		}
		if len(cached) > 0 {
			slog.Debug("serving bookmarks from merge cache", "book_id", book.BookID, "count", len(cached))
			return attachBook(cached, book), nil
		}
	}

	return sess.FetchBookmarks(ctx, book)
}

// FetchBookmarks always fetches from the network, bypassing the cache
// read, and merge-writes the result back. Bulk sync uses this directly so
// a refresh is never short-circuited by its own previous output.
func (sess *Session) FetchBookmarks(ctx context.Context, book model.Book) ([]model.Bookmark, error) {
	bookmarks, err := sess.client.ListBookmarks(ctx, book.BookID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks for %q: %w", book.BookID, err)
	}

	bookmarks = attachBook(bookmarks, book)

	if sess.cache != nil && len(bookmarks) > 0 {
		if err := sess.cache.Merge(ctx, bookmarks); err != nil {
			slog.Warn("bookmark cache merge failed", "book_id", book.BookID, "error", err)
		}
	}

	return bookmarks, nil
}

// attachBook denormalizes the owning book's title and author onto each
// passage. The upstream passage representation does not carry them.
func attachBook(bookmarks []model.Bookmark, book model.Book) []model.Bookmark {
	out := make([]model.Bookmark, len(bookmarks))
	copy(out, bookmarks)
	for i := range out {
		if out[i].Title == "" {
			out[i].Title = book.Title
		}
		if out[i].Author == "" {
			out[i].Author = book.Author
		}
	}
	return out
}
