package application

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// priorityWeightBoost multiplies a book's selection weight when its title
// matches a configured priority entry.
const priorityWeightBoost = 100

// priorityPoolProbability is the chance of drawing from the priority
// subset when picking directly from a passage pool, where per-book
// content counters are unavailable.
const priorityPoolProbability = 0.8

// BookmarkFetcher supplies the passages of one book. *Session implements
// it; tests substitute a fake.
type BookmarkFetcher interface {
	Bookmarks(ctx context.Context, book model.Book) ([]model.Bookmark, error)
}

// PickerConfig tunes the selection engine.
type PickerConfig struct {
	// PriorityTitles are substrings; a book whose title contains one is
	// explicitly favored.
	PriorityTitles []string

	// BlacklistTitles are substrings; matching books are never selected.
	BlacklistTitles []string

	// ScanLimit bounds how many candidate books a single pick may fetch
	// before settling for a previously seen passage.
	ScanLimit int
}

// Picker is the selection engine: it chooses one unseen passage from a
// candidate pool, with weighted ordering, a bounded scan, and layered
// fallbacks so it never trivially returns nothing while content exists.
type Picker struct {
	seen driven.SeenStore
	cfg  PickerConfig
	rng  *rand.Rand
}

// NewPicker creates a Picker. rng may be nil, in which case a
// freshly seeded source is used; tests inject a deterministic one.
func NewPicker(seen driven.SeenStore, cfg PickerConfig, rng *rand.Rand) *Picker {
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 20
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{seen: seen, cfg: cfg, rng: rng}
}

// PickFromBooks selects one passage by scanning candidate books in
// weighted-random order, fetching passages through the given fetcher.
// It returns nil (no error) only when the pool holds no content at all.
func (p *Picker) PickFromBooks(ctx context.Context, fetcher BookmarkFetcher, books []model.Book) (*model.Bookmark, error) {
	candidates := p.withoutBlacklisted(books)
	if len(candidates) == 0 {
		return nil, nil
	}

	history, err := p.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	ordered := p.weightedOrder(candidates)

	limit := min(len(ordered), p.cfg.ScanLimit)
	var backup *model.Bookmark

	for i := 0; i < limit; i++ {
		book := ordered[i]

		bookmarks, err := fetcher.Bookmarks(ctx, book)
		if err != nil {
			if isSessionExpired(err) {
				return nil, err
			}
			slog.Warn("candidate book fetch failed, trying next", "title", book.Title, "error", err)
			continue
		}
		if len(bookmarks) == 0 {
			continue
		}

		unseen := p.unseenOf(bookmarks, history)
		if len(unseen) > 0 {
			chosen := unseen[p.rng.IntN(len(unseen))]
			p.recordSeen(ctx, history, chosen)
			return &chosen, nil
		}

		// All passages of this book were shown recently. Keep one as a
		// backup and continue scanning for fresh content.
		if backup == nil {
			b := bookmarks[p.rng.IntN(len(bookmarks))]
			backup = &b
		}
	}

	if backup != nil {
		slog.Info("no unseen passages within scan limit, returning a repeat")
		return backup, nil
	}

	// Every sampled book was empty or failed. Force-fetch the single
	// richest book across the entire candidate set as a last resort.
	richest := richestBook(candidates)
	if richest == nil {
		return nil, nil
	}

	bookmarks, err := fetcher.Bookmarks(ctx, *richest)
	if err != nil || len(bookmarks) == 0 {
		if err != nil && isSessionExpired(err) {
			return nil, err
		}
		if err != nil {
			slog.Warn("fail-safe fetch failed", "title", richest.Title, "error", err)
		}
		return nil, nil
	}

	chosen := bookmarks[p.rng.IntN(len(bookmarks))]
	p.recordSeen(ctx, history, chosen)
	return &chosen, nil
}

// PickFromSnapshot selects one passage directly from a locally cached
// passage pool. Books with priority titles win with probability 0.8 when
// present; counters are not available at passage granularity, so the
// weighted formula does not apply here.
func (p *Picker) PickFromSnapshot(ctx context.Context, pool []model.Bookmark) (*model.Bookmark, error) {
	candidates := make([]model.Bookmark, 0, len(pool))
	for _, b := range pool {
		if b.TrimmedText() == "" || p.isBlacklisted(b.Title) {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	history, err := p.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	var priority, general []model.Bookmark
	for _, b := range candidates {
		if p.isPriority(b.Title) {
			priority = append(priority, b)
		} else {
			general = append(general, b)
		}
	}

	subset := general
	if len(priority) > 0 && (len(general) == 0 || p.rng.Float64() < priorityPoolProbability) {
		subset = priority
	}

	unseen := p.unseenOf(subset, history)
	if len(unseen) == 0 {
		// Widen to the whole pool before settling for a repeat.
		unseen = p.unseenOf(candidates, history)
	}

	if len(unseen) > 0 {
		chosen := unseen[p.rng.IntN(len(unseen))]
		p.recordSeen(ctx, history, chosen)
		return &chosen, nil
	}

	chosen := candidates[p.rng.IntN(len(candidates))]
	return &chosen, nil
}

// weightedOrder orders books by descending weight x uniform(0,1), where
// weight is the combined content counters (floor 1, so priority books
// with unknown counters still rank) boosted x100 for priority titles.
// This biases toward content-rich and explicitly favored books without a
// deterministic ordering.
func (p *Picker) weightedOrder(books []model.Book) []model.Book {
	type scored struct {
		book  model.Book
		score float64
	}

	scoredBooks := make([]scored, 0, len(books))
	for _, b := range books {
		weight := float64(max(b.ContentCount(), 1))
		if p.isPriority(b.Title) {
			weight *= priorityWeightBoost
		}
		scoredBooks = append(scoredBooks, scored{book: b, score: weight * p.rng.Float64()})
	}

	sort.SliceStable(scoredBooks, func(i, j int) bool {
		return scoredBooks[i].score > scoredBooks[j].score
	})

	out := make([]model.Book, len(scoredBooks))
	for i, s := range scoredBooks {
		out[i] = s.book
	}
	return out
}

// richestBook returns the book with the highest combined content count,
// or nil when the slice is empty.
func richestBook(books []model.Book) *model.Book {
	var richest *model.Book
	for i := range books {
		if richest == nil || books[i].ContentCount() > richest.ContentCount() {
			richest = &books[i]
		}
	}
	return richest
}

func (p *Picker) withoutBlacklisted(books []model.Book) []model.Book {
	out := make([]model.Book, 0, len(books))
	for _, b := range books {
		if p.isBlacklisted(b.Title) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (p *Picker) isPriority(title string) bool {
	return titleMatches(title, p.cfg.PriorityTitles)
}

func (p *Picker) isBlacklisted(title string) bool {
	return titleMatches(title, p.cfg.BlacklistTitles)
}

func titleMatches(title string, patterns []string) bool {
	if title == "" {
		return false
	}
	for _, pat := range patterns {
		if pat != "" && strings.Contains(title, pat) {
			return true
		}
	}
	return false
}

func (p *Picker) unseenOf(bookmarks []model.Bookmark, history *model.SeenHistory) []model.Bookmark {
	var out []model.Bookmark
	for _, b := range bookmarks {
		if !history.Contains(b.TrimmedText()) {
			out = append(out, b)
		}
	}
	return out
}

// loadHistory loads the persisted seen history, degrading to an empty one
// when the store fails: selection must not be blocked by history I/O.
func (p *Picker) loadHistory(ctx context.Context) (*model.SeenHistory, error) {
	if p.seen == nil {
		return model.NewSeenHistory(), nil
	}
	history, err := p.seen.Load(ctx)
	if err != nil {
		slog.Warn("seen history load failed, starting empty", "error", err)
		return model.NewSeenHistory(), nil
	}
	return history, nil
}

// recordSeen appends the chosen passage to the history and persists it.
// Persistence failures are logged; losing history is preferable to
// failing the pick.
func (p *Picker) recordSeen(ctx context.Context, history *model.SeenHistory, chosen model.Bookmark) {
	history.Add(chosen.TrimmedText())
	if p.seen == nil {
		return
	}
	if err := p.seen.Save(ctx, history); err != nil {
		slog.Warn("seen history save failed", "error", err)
	}
}

func isSessionExpired(err error) bool {
	return errors.Is(err, driven.ErrSessionExpired)
}
