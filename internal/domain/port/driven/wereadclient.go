package driven

import (
	"context"

	"readfocus/internal/domain/model"
)

// WereadClient defines the driven port for the upstream WeRead service.
// An implementation is bound to a single session credential and must not be
// used concurrently: it mutates its credential in place as responses arrive.
type WereadClient interface {
	// ListNotebooks returns the user's notebooks (books with highlights).
	// Returns ErrSessionExpired when the service rejects the credential.
	ListNotebooks(ctx context.Context) ([]model.Book, error)

	// ListBookmarks returns the deduplicated highlighted passages for one
	// book, merged from personal highlights, personal reviews, and, only
	// when both are empty, the public best-highlights list. Individual
	// source failures degrade to empty results; only session expiry or the
	// failure of every source is returned as an error.
	ListBookmarks(ctx context.Context, bookID string) ([]model.Bookmark, error)

	// Credential returns the session credential currently held by the
	// client, including any cookies rotated in by upstream responses.
	Credential() model.Credential
}
