package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"readfocus/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it with the given status code.
// If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with a machine-readable code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Machine-readable error codes surfaced to the presentation layer.
const (
	codeSessionExpired      = "SESSION_EXPIRED"
	codeCookieNotConfigured = "COOKIE_NOT_CONFIGURED"
	codeUpstreamError       = "UPSTREAM_ERROR"
)

// BookResponse is the JSON representation of a notebook.
type BookResponse struct {
	BookID        string `json:"bookId"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Cover         string `json:"cover"`
	NoteCount     int    `json:"noteCount"`
	BookmarkCount int    `json:"bookmarkCount"`
}

// BookmarkResponse is the JSON representation of a selected passage.
type BookmarkResponse struct {
	BookmarkID string `json:"bookmarkId"`
	BookID     string `json:"bookId"`
	MarkText   string `json:"markText"`
	NoteText   string `json:"noteText,omitempty"`
	CreateTime int64  `json:"createTime"`
	ChapterUID int64  `json:"chapterUid,omitempty"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	IsBest     bool   `json:"isBest,omitempty"`
}

// SyncResponse is the JSON summary of a completed bulk sync.
type SyncResponse struct {
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	Passages    int    `json:"passages"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toBookResponse converts a domain Book to its JSON representation.
func toBookResponse(b model.Book) BookResponse {
	return BookResponse{
		BookID:        b.BookID,
		Title:         b.Title,
		Author:        b.Author,
		Cover:         b.Cover,
		NoteCount:     b.NoteCount,
		BookmarkCount: b.BookmarkCount,
	}
}

// toBookmarkResponse converts a domain Bookmark to its JSON representation.
func toBookmarkResponse(b model.Bookmark) BookmarkResponse {
	return BookmarkResponse{
		BookmarkID: b.BookmarkID,
		BookID:     b.BookID,
		MarkText:   b.MarkText,
		NoteText:   b.NoteText,
		CreateTime: b.CreateTime,
		ChapterUID: b.ChapterUID,
		Title:      b.Title,
		Author:     b.Author,
		IsBest:     b.IsBest,
	}
}

// healthNow builds the health payload for the current instant.
func healthNow() HealthResponse {
	return HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
}
