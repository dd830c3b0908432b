package driven

import (
	"context"

	"readfocus/internal/domain/model"
)

// SeenStore defines the driven port for persisting the recently-shown
// passage history across process and session boundaries.
type SeenStore interface {
	// Load returns the persisted history, oldest first. A store that has
	// never been written returns an empty history, not an error.
	Load(ctx context.Context) (*model.SeenHistory, error)

	// Save persists the history, replacing any previous state.
	Save(ctx context.Context, history *model.SeenHistory) error
}
