package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port:
// the client-snapshot cache tier. The full passage set lives in a single
// row as a JSON blob and is replaced wholesale; a failed replace rolls
// back, leaving the previous snapshot intact.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// persistedBookmark is the stored JSON shape of one passage.
type persistedBookmark struct {
	BookmarkID string `json:"bookmarkId"`
	BookID     string `json:"bookId"`
	MarkText   string `json:"markText"`
	NoteText   string `json:"noteText,omitempty"`
	CreateTime int64  `json:"createTime"`
	ChapterUID int64  `json:"chapterUid,omitempty"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	IsBest     bool   `json:"isBest,omitempty"`
}

// Replace swaps the stored snapshot for the given passage set.
func (r *SnapshotRepo) Replace(ctx context.Context, bookmarks []model.Bookmark) error {
	persisted := make([]persistedBookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		persisted = append(persisted, persistedBookmark{
			BookmarkID: b.BookmarkID,
			BookID:     b.BookID,
			MarkText:   b.MarkText,
			NoteText:   b.NoteText,
			CreateTime: b.CreateTime,
			ChapterUID: b.ChapterUID,
			Title:      b.Title,
			Author:     b.Author,
			IsBest:     b.IsBest,
		})
	}

	payload, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	const query = `
		INSERT INTO snapshots (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Writer.ExecContext(ctx, query, string(payload), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load returns the stored passage set and its write time. A store that has
// never been written returns (nil, zero time, nil).
func (r *SnapshotRepo) Load(ctx context.Context) ([]model.Bookmark, time.Time, error) {
	const query = `SELECT payload, updated_at FROM snapshots WHERE id = 1`

	var payload, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}

	var persisted []persistedBookmark
	if err := json.Unmarshal([]byte(payload), &persisted); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	bookmarks := make([]model.Bookmark, 0, len(persisted))
	for _, p := range persisted {
		bookmarks = append(bookmarks, model.Bookmark{
			BookmarkID: p.BookmarkID,
			BookID:     p.BookID,
			MarkText:   p.MarkText,
			NoteText:   p.NoteText,
			CreateTime: p.CreateTime,
			ChapterUID: p.ChapterUID,
			Title:      p.Title,
			Author:     p.Author,
			IsBest:     p.IsBest,
		})
	}

	ts, err := parseTime(updatedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse snapshot timestamp: %w", err)
	}

	return bookmarks, ts, nil
}
