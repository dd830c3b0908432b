package model

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Bookmark represents a single highlighted passage. Title and Author are
// denormalized from the owning Book by the aggregator; the upstream passage
// representation does not include them.
type Bookmark struct {
	BookmarkID string
	BookID     string
	MarkText   string
	NoteText   string // Reviewer's own thought attached to the highlight, when present.
	CreateTime int64  // Unix seconds, as reported by the upstream service.
	ChapterUID int64
	Title      string
	Author     string
	IsBest     bool // True when sourced from the public best-highlights fallback.
}

// DedupKey returns the identity used for deduplication: owning book plus
// trimmed text. Upstream identifiers are not stable across the merged
// sources (highlights, reviews, best list), so BookmarkID is deliberately
// not part of the key.
func (b Bookmark) DedupKey() string {
	return b.BookID + "\x00" + strings.TrimSpace(b.MarkText)
}

// TrimmedText returns the passage text with surrounding whitespace removed.
func (b Bookmark) TrimmedText() string {
	return strings.TrimSpace(b.MarkText)
}

var bookmarkIDCounter atomic.Int64

// SynthesizeBookmarkID generates a locally unique identifier for passages
// the upstream service returned without one.
func SynthesizeBookmarkID() string {
	return fmt.Sprintf("gen-%d-%d", time.Now().UnixNano(), bookmarkIDCounter.Add(1))
}

// DedupBookmarks merges bookmarks into a set unique by DedupKey,
// last-write-wins. Entries with empty trimmed text are dropped. Order of
// first appearance is preserved for surviving keys.
func DedupBookmarks(bookmarks []Bookmark) []Bookmark {
	index := make(map[string]int, len(bookmarks))
	out := make([]Bookmark, 0, len(bookmarks))

	for _, b := range bookmarks {
		b.MarkText = b.TrimmedText()
		if b.MarkText == "" {
			continue
		}
		key := b.DedupKey()
		if i, ok := index[key]; ok {
			out[i] = b
			continue
		}
		index[key] = len(out)
		out = append(out, b)
	}

	return out
}
