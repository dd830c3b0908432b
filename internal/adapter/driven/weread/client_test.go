package weread_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readfocus/internal/adapter/driven/weread"
	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, cookie string) (*weread.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := weread.NewClientWithHTTPClient(srv.Client(), srv.URL, model.ParseCredential(cookie))
	return client, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestListNotebooks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"books": []map[string]any{
				{
					"bookId":        "b1",
					"book":          map[string]string{"title": "Thinking in Systems", "author": "Meadows", "cover": "https://cdn/x.jpg"},
					"noteCount":     2,
					"bookmarkCount": 5,
				},
				{
					"bookId":        "b2",
					"book":          map[string]string{"title": "Empty Book", "author": "Nobody"},
					"noteCount":     0,
					"bookmarkCount": 0,
				},
			},
		})
	})

	client, _ := newTestClient(t, mux, "wr_vid=123")

	books, err := client.ListNotebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "b1", books[0].BookID)
	assert.Equal(t, "Thinking in Systems", books[0].Title)
	assert.Equal(t, "Meadows", books[0].Author)
	assert.Equal(t, 7, books[0].ContentCount())
	assert.False(t, books[1].HasContent())
}

func TestListNotebooks_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _ := newTestClient(t, mux, "wr_vid=expired")

	_, err := client.ListNotebooks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrSessionExpired)
}

func TestListNotebooks_VendorErrcode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		// The service reports auth failure with HTTP 200 and a vendor code.
		writeJSON(t, w, map[string]any{"errcode": -2012, "errmsg": "login timeout"})
	})

	client, _ := newTestClient(t, mux, "wr_vid=expired")

	_, err := client.ListNotebooks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrSessionExpired)
}

func TestCredentialRotation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "wr_skey=rotated; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "wr_rt=fresh; Path=/")
	})
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		// The rotated cookie must be presented on the follow-up request.
		assert.Contains(t, r.Header.Get("Cookie"), "wr_skey=rotated")
		assert.Contains(t, r.Header.Get("Cookie"), "wr_vid=123")
		writeJSON(t, w, map[string]any{"books": []any{}})
	})

	client, _ := newTestClient(t, mux, "wr_vid=123; wr_skey=stale")

	_, err := client.ListNotebooks(context.Background())
	require.NoError(t, err)

	skey, ok := client.Credential().Get("wr_skey")
	require.True(t, ok)
	assert.Equal(t, "rotated", skey)

	rt, ok := client.Credential().Get("wr_rt")
	require.True(t, ok)
	assert.Equal(t, "fresh", rt)
}

func TestListBookmarks_MergesSourcesAndDedups(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b1", r.URL.Query().Get("bookId"))
		writeJSON(t, w, map[string]any{
			"updated": []map[string]any{
				{"bookmarkId": "m1", "markText": "shared passage", "createTime": 100, "chapterUid": 3},
				{"bookmarkId": "m2", "markText": "only a highlight", "createTime": 200, "chapterUid": 4},
			},
		})
	})
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("listType"))
		writeJSON(t, w, map[string]any{
			"reviews": []map[string]any{
				{"review": map[string]any{"reviewId": "r1", "abstract": " shared passage ", "content": "my thought", "createTime": 300}},
				{"review": map[string]any{"reviewId": "r2", "abstract": "", "content": "pure thought, skipped", "createTime": 400}},
				{"review": map[string]any{"reviewId": "r3", "abstract": "review only", "content": "", "createTime": 500}},
			},
		})
	})
	mux.HandleFunc("/web/book/bestbookmarks", func(w http.ResponseWriter, r *http.Request) {
		t.Error("best bookmarks must not be consulted when personal notes exist")
	})

	client, _ := newTestClient(t, mux, "wr_vid=123")

	bookmarks, err := client.ListBookmarks(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 3)

	// The review duplicate wins over the earlier highlight, carrying its note.
	assert.Equal(t, "shared passage", bookmarks[0].MarkText)
	assert.Equal(t, "my thought", bookmarks[0].NoteText)
	assert.Equal(t, "only a highlight", bookmarks[1].MarkText)
	assert.Equal(t, "review only", bookmarks[2].MarkText)

	for _, b := range bookmarks {
		assert.Equal(t, "b1", b.BookID)
		assert.NotEmpty(t, b.BookmarkID)
	}
}

func TestListBookmarks_BestFallbackOnlyWhenEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"updated": []any{}})
	})
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"reviews": []any{}})
	})
	mux.HandleFunc("/web/book/bestbookmarks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []map[string]string{{"text": "a popular passage"}},
		})
	})

	client, _ := newTestClient(t, mux, "wr_vid=123")

	bookmarks, err := client.ListBookmarks(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)

	assert.Equal(t, "a popular passage", bookmarks[0].MarkText)
	assert.True(t, bookmarks[0].IsBest)
	assert.NotZero(t, bookmarks[0].CreateTime)
}

func TestListBookmarks_PartialFailureDegrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"reviews": []map[string]any{
				{"review": map[string]any{"reviewId": "r1", "abstract": "survives", "createTime": 1}},
			},
		})
	})

	client, _ := newTestClient(t, mux, "wr_vid=123")

	bookmarks, err := client.ListBookmarks(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "survives", bookmarks[0].MarkText)
}

func TestListBookmarks_AllSourcesFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/web/book/bestbookmarks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, mux, "wr_vid=123")

	_, err := client.ListBookmarks(context.Background(), "b1")
	assert.Error(t, err)
}

func TestListBookmarks_SessionExpiryAborts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		t.Error("review list must not be consulted after session expiry")
	})

	client, _ := newTestClient(t, mux, "wr_vid=expired")

	_, err := client.ListBookmarks(context.Background(), "b1")
	assert.ErrorIs(t, err, driven.ErrSessionExpired)
}
