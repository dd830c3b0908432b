package sqlite

import (
	"context"
	"fmt"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SeenStore = (*SeenRepo)(nil)

// SeenRepo is the SQLite implementation of the SeenStore port. Rows keep
// insertion order via an autoincrement position column; the cap is applied
// by the SeenHistory value object, so Save simply persists its contents.
type SeenRepo struct {
	db *DB
}

// NewSeenRepo creates a SeenRepo backed by the given DB.
func NewSeenRepo(db *DB) *SeenRepo {
	return &SeenRepo{db: db}
}

// Load returns the persisted history, oldest first.
func (r *SeenRepo) Load(ctx context.Context) (*model.SeenHistory, error) {
	const query = `SELECT mark_text FROM seen_history ORDER BY position`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query seen history: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan seen entry: %w", err)
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen history: %w", err)
	}

	return model.SeenHistoryFromTexts(texts), nil
}

// Save persists the history, replacing any previous state.
func (r *SeenRepo) Save(ctx context.Context, history *model.SeenHistory) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seen save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_history`); err != nil {
		return fmt.Errorf("clear seen history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO seen_history (mark_text) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare seen insert: %w", err)
	}
	defer stmt.Close()

	for _, text := range history.Texts() {
		if _, err := stmt.ExecContext(ctx, text); err != nil {
			return fmt.Errorf("insert seen entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seen save: %w", err)
	}
	return nil
}
