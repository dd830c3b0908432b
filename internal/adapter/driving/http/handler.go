// Package httphandler is the HTTP driving adapter serving the request
// contract consumed by the presentation layer.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"readfocus/internal/application"
	"readfocus/internal/domain/port/driven"
)

// credentialHeader carries an explicit per-request session cookie from
// the caller, taking priority over every configured credential source.
const credentialHeader = "X-Weread-Cookie"

// Handler is the HTTP driving adapter.
type Handler struct {
	content  *application.ContentService
	picker   *application.Picker
	syncSvc  *application.SyncService
	snapshot driven.SnapshotStore
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	content *application.ContentService,
	picker *application.Picker,
	syncSvc *application.SyncService,
	snapshot driven.SnapshotStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		content:  content,
		picker:   picker,
		syncSvc:  syncSvc,
		snapshot: snapshot,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/notebooks", h.ListNotebooks)
	mux.HandleFunc("GET /api/v1/bookmark", h.GetBookmark)
	mux.HandleFunc("POST /api/v1/sync", h.RunSync)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListNotebooks returns the user's notebooks.
func (h *Handler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	sess, err := h.content.Open(r.Context(), r.Header.Get(credentialHeader))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	books, err := sess.Notebooks(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]BookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBookmark returns one selected passage. With ?source=local the
// selection runs over the local snapshot tier only; the default path
// scans notebooks with cache-backed per-book fetches. A 204 response is
// the legitimate "no content anywhere" terminal state, not an error.
func (h *Handler) GetBookmark(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "local" {
		h.getBookmarkFromSnapshot(w, r)
		return
	}

	sess, err := h.content.Open(r.Context(), r.Header.Get(credentialHeader))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	books, err := sess.Notebooks(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	bookmark, err := h.picker.PickFromBooks(r.Context(), sess, books)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if bookmark == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*bookmark))
}

func (h *Handler) getBookmarkFromSnapshot(w http.ResponseWriter, r *http.Request) {
	pool, _, err := h.snapshot.Load(r.Context())
	if err != nil {
		h.logger.Error("snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeUpstreamError, "failed to read local snapshot")
		return
	}

	bookmark, err := h.picker.PickFromSnapshot(r.Context(), pool)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if bookmark == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(*bookmark))
}

// RunSync runs a bulk snapshot sync and returns its summary.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncSvc.Sync(r.Context(), r.Header.Get(credentialHeader), func(processed, total int, message string) {
		h.logger.Info("sync progress", "processed", processed, "total", total, "message", message)
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := SyncResponse{
		Processed: result.Processed,
		Total:     result.Total,
		Passages:  result.Passages,
	}
	if !result.LastUpdated.IsZero() {
		resp.LastUpdated = result.LastUpdated.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a static health status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthNow())
}

// writeServiceError maps the error taxonomy onto the wire contract:
// session expiry and missing credentials are distinct, user-actionable
// conditions; everything else collapses to a generic retryable message.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, driven.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, codeSessionExpired, "WeChat Reading session expired")
	case errors.Is(err, driven.ErrCredentialUnavailable):
		writeError(w, http.StatusUnauthorized, codeCookieNotConfigured, "WeRead cookie not configured")
	default:
		h.logger.Error("upstream request failed", "error", err)
		writeError(w, http.StatusBadGateway, codeUpstreamError, "failed to fetch content, please try again")
	}
}
