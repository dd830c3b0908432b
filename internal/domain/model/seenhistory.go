package model

// SeenHistoryCap is the maximum number of passage texts retained in the
// recently-shown history. Oldest entries are evicted first once exceeded.
const SeenHistoryCap = 200

// SeenHistory is a bounded ordered set of previously surfaced passage
// texts. It is global per installation, not per-book, and grows
// monotonically up to the cap.
type SeenHistory struct {
	order []string
	seen  map[string]struct{}
	cap   int
}

// NewSeenHistory creates an empty history with the standard cap.
func NewSeenHistory() *SeenHistory {
	return NewSeenHistoryWithCap(SeenHistoryCap)
}

// NewSeenHistoryWithCap creates an empty history with a custom cap.
// A cap below 1 is treated as 1.
func NewSeenHistoryWithCap(capacity int) *SeenHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &SeenHistory{
		seen: make(map[string]struct{}),
		cap:  capacity,
	}
}

// Contains reports whether the text has been surfaced recently.
func (h *SeenHistory) Contains(text string) bool {
	_, ok := h.seen[text]
	return ok
}

// Add records a surfaced passage text. Re-adding an existing text is a
// no-op (it keeps its original position). When the cap is exceeded, the
// oldest entries by insertion order are evicted until the cap holds.
func (h *SeenHistory) Add(text string) {
	if text == "" {
		return
	}
	if _, ok := h.seen[text]; ok {
		return
	}

	h.order = append(h.order, text)
	h.seen[text] = struct{}{}

	for len(h.order) > h.cap {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.seen, oldest)
	}
}

// Len returns the number of retained texts.
func (h *SeenHistory) Len() int {
	return len(h.order)
}

// Texts returns the retained texts in insertion order, oldest first.
// The returned slice is a copy.
func (h *SeenHistory) Texts() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// SeenHistoryFromTexts rebuilds a history from persisted texts, oldest
// first, applying the standard cap.
func SeenHistoryFromTexts(texts []string) *SeenHistory {
	h := NewSeenHistory()
	for _, t := range texts {
		h.Add(t)
	}
	return h
}
