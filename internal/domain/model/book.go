package model

// Book represents a WeRead notebook: a book the user has highlighted or
// annotated at least once. Re-fetched per session; immutable once fetched.
type Book struct {
	BookID        string
	Title         string
	Author        string
	Cover         string
	NoteCount     int
	BookmarkCount int
}

// ContentCount returns the combined highlight and note counters, the weight
// basis for selection.
func (b Book) ContentCount() int {
	return b.NoteCount + b.BookmarkCount
}

// HasContent returns true when the notebook carries at least one highlight
// or note according to its counters.
func (b Book) HasContent() bool {
	return b.ContentCount() > 0
}
