package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BookmarkCache = (*BookmarkRepo)(nil)

// BookmarkRepo is the SQLite implementation of the BookmarkCache port:
// the server-side merge cache tier. Rows are keyed by (book_id, trimmed
// mark_text) and only ever inserted or overwritten, never deleted.
type BookmarkRepo struct {
	db *DB
}

// NewBookmarkRepo creates a BookmarkRepo backed by the given DB.
func NewBookmarkRepo(db *DB) *BookmarkRepo {
	return &BookmarkRepo{db: db}
}

// GetByBook returns all cached passages for the given book.
func (r *BookmarkRepo) GetByBook(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	const query = `
		SELECT book_id, mark_text, bookmark_id, note_text, create_time, chapter_uid, title, author, is_best
		FROM bookmarks
		WHERE book_id = ?
		ORDER BY create_time, mark_text
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks for book %q: %w", bookID, err)
	}
	defer rows.Close()

	var out []model.Bookmark
	for rows.Next() {
		var b model.Bookmark
		var isBest int
		if err := rows.Scan(&b.BookID, &b.MarkText, &b.BookmarkID, &b.NoteText,
			&b.CreateTime, &b.ChapterUID, &b.Title, &b.Author, &isBest); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.IsBest = isBest != 0
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}

	return out, nil
}

// Merge upserts passages into the cache. Entries sharing a dedup key
// overwrite the stored row; everything else is preserved. Passages with
// empty trimmed text are skipped.
func (r *BookmarkRepo) Merge(ctx context.Context, bookmarks []model.Bookmark) error {
	const query = `
		INSERT INTO bookmarks (
			book_id, mark_text, bookmark_id, note_text, create_time, chapter_uid, title, author, is_best, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(book_id, mark_text) DO UPDATE SET
			bookmark_id = excluded.bookmark_id,
			note_text = excluded.note_text,
			create_time = excluded.create_time,
			chapter_uid = excluded.chapter_uid,
			title = excluded.title,
			author = excluded.author,
			is_best = excluded.is_best,
			updated_at = CURRENT_TIMESTAMP
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close()

	for _, b := range bookmarks {
		text := b.TrimmedText()
		if text == "" || b.BookID == "" {
			continue
		}

		isBest := 0
		if b.IsBest {
			isBest = 1
		}

		if _, err := stmt.ExecContext(ctx, b.BookID, text, b.BookmarkID, b.NoteText,
			b.CreateTime, b.ChapterUID, b.Title, b.Author, isBest); err != nil {
			return fmt.Errorf("merge bookmark for book %q: %w", b.BookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// LastUpdated returns the time of the most recent merge, or the zero time
// when the cache is empty.
func (r *BookmarkRepo) LastUpdated(ctx context.Context) (time.Time, error) {
	const query = `SELECT MAX(updated_at) FROM bookmarks`

	var raw sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last updated: %w", err)
	}

	return parseTime(raw.String)
}
