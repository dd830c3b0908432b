// Package weread implements the WereadClient port against the WeRead web
// API. The API is session-based: it issues rotating cookies on every
// response, so the client holds one mutable credential slot and expects
// browser-like request headers.
package weread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WereadClient = (*Client)(nil)

const (
	defaultBaseURL    = "https://weread.qq.com"
	notebooksPath     = "/api/user/notebook"
	bookmarkListPath  = "/web/book/bookmarklist"
	reviewListPath    = "/web/review/list"
	bestBookmarksPath = "/web/book/bestbookmarks"

	requestTimeout = 60 * time.Second

	// Vendor error code signalling an invalid or expired session.
	errcodeSessionExpired = -2012

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// Client is the WeRead session client. It is bound to one credential and
// must not be used from multiple goroutines: the credential slot is mutated
// without locking on every response.
type Client struct {
	baseURL    string
	cred       model.Credential
	httpClient *http.Client
	delay      func() // anti-anomaly pause before the notebook listing
}

// NewClient creates a Client holding the given session credential.
func NewClient(credential model.Credential) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		cred:       credential,
		httpClient: &http.Client{Timeout: requestTimeout},
		delay:      randomDelay,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL and no anti-anomaly delay. Intended for testing against an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, credential model.Credential) *Client {
	return &Client{
		baseURL:    baseURL,
		cred:       credential,
		httpClient: httpClient,
		delay:      func() {},
	}
}

// randomDelay sleeps 500-1000ms to avoid upstream anomaly detection.
func randomDelay() {
	time.Sleep(time.Duration(500+rand.IntN(500)) * time.Millisecond)
}

// Credential returns the currently held session credential.
func (c *Client) Credential() model.Credential {
	return c.cred
}

// headers returns the browser-mimicking header set the WeRead web client
// sends. docMode switches Accept and sec-fetch-* to the values of a
// top-level document navigation, used for the session-priming request.
func (c *Client) headers(docMode bool) http.Header {
	h := http.Header{}
	h.Set("Cookie", c.cred.String())
	h.Set("User-Agent", userAgent)
	h.Set("Connection", "keep-alive")
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("cache-control", "no-cache")
	h.Set("pragma", "no-cache")
	h.Set("sec-ch-ua", `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"macOS"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("Referer", "https://weread.qq.com/")
	h.Set("Origin", "https://weread.qq.com")

	if docMode {
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
		h.Set("sec-fetch-dest", "document")
		h.Set("sec-fetch-mode", "navigate")
	}

	return h
}

// get issues a GET to path with the given query parameters, rotates the
// held credential from the response cookies, and returns the response.
// The response body is open; callers must close it.
func (c *Client) get(ctx context.Context, path string, params url.Values, docMode bool) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header = c.headers(docMode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	c.cred = rotateCredential(c.cred, resp)

	return resp, nil
}

// primeSession issues a document-style GET to the service root purely to
// collect session-establishing cookies. Failures are logged and swallowed.
func (c *Client) primeSession(ctx context.Context) {
	resp, err := c.get(ctx, "/", nil, true)
	if err != nil {
		slog.Warn("weread session priming failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// apiError is the vendor error body returned on rejected requests.
type apiError struct {
	Errcode int    `json:"errcode"`
	Errmsg  string `json:"errmsg"`
}

// decodeJSON reads the response body, classifies failures, and decodes a
// successful body into v. HTTP 401 and the vendor auth error code map to
// driven.ErrSessionExpired; everything else is a generic upstream error.
func decodeJSON(resp *http.Response, path string, v any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s returned 401: %w", path, driven.ErrSessionExpired)
	}

	var vendorErr apiError
	if json.Unmarshal(body, &vendorErr) == nil && vendorErr.Errcode == errcodeSessionExpired {
		return fmt.Errorf("%s errcode %d: %w", path, vendorErr.Errcode, driven.ErrSessionExpired)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// notebookResponse is the wire shape of the notebook-listing endpoint.
type notebookResponse struct {
	Books []struct {
		BookID string `json:"bookId"`
		Book   struct {
			Title  string `json:"title"`
			Author string `json:"author"`
			Cover  string `json:"cover"`
		} `json:"book"`
		NoteCount     int `json:"noteCount"`
		BookmarkCount int `json:"bookmarkCount"`
	} `json:"books"`
}

// ListNotebooks returns the user's notebooks. It primes the session first
// and waits a randomized delay before the listing call.
func (c *Client) ListNotebooks(ctx context.Context) ([]model.Book, error) {
	c.primeSession(ctx)
	c.delay()

	resp, err := c.get(ctx, notebooksPath, nil, false)
	if err != nil {
		return nil, err
	}

	var nr notebookResponse
	if err := decodeJSON(resp, notebooksPath, &nr); err != nil {
		return nil, err
	}

	books := make([]model.Book, 0, len(nr.Books))
	for _, item := range nr.Books {
		books = append(books, model.Book{
			BookID:        item.BookID,
			Title:         item.Book.Title,
			Author:        item.Book.Author,
			Cover:         item.Book.Cover,
			NoteCount:     item.NoteCount,
			BookmarkCount: item.BookmarkCount,
		})
	}

	slog.Debug("weread notebooks listed", "count", len(books))
	return books, nil
}

// ListBookmarks returns the deduplicated passages for one book, merged
// from the personal highlight list, the personal review list, and, only
// when both come back empty, the public best-highlights list. A sub-fetch
// failure degrades to an empty result unless it signals session expiry;
// only the failure of every consulted source escalates.
func (c *Client) ListBookmarks(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	c.primeSession(ctx)

	var failures []error

	bookmarks, err := c.fetchBookmarkList(ctx, bookID)
	if err != nil {
		if errors.Is(err, driven.ErrSessionExpired) {
			return nil, err
		}
		slog.Warn("bookmark list fetch failed", "book_id", bookID, "error", err)
		failures = append(failures, err)
	}

	reviews, err := c.fetchReviewList(ctx, bookID)
	if err != nil {
		if errors.Is(err, driven.ErrSessionExpired) {
			return nil, err
		}
		slog.Warn("review list fetch failed", "book_id", bookID, "error", err)
		failures = append(failures, err)
	}

	combined := append(bookmarks, reviews...)

	if len(combined) == 0 {
		slog.Info("no personal notes found, trying best bookmarks", "book_id", bookID)
		best, err := c.fetchBestBookmarks(ctx, bookID)
		if err != nil {
			if errors.Is(err, driven.ErrSessionExpired) {
				return nil, err
			}
			slog.Warn("best bookmarks fetch failed", "book_id", bookID, "error", err)
			failures = append(failures, err)
		}
		combined = best

		if len(failures) == 3 {
			return nil, fmt.Errorf("all bookmark sources failed for book %s: %w", bookID, errors.Join(failures...))
		}
	}

	for i := range combined {
		combined[i].BookID = bookID
		if combined[i].BookmarkID == "" {
			combined[i].BookmarkID = model.SynthesizeBookmarkID()
		}
	}

	result := model.DedupBookmarks(combined)
	slog.Debug("weread bookmarks merged", "book_id", bookID, "total", len(combined), "unique", len(result))
	return result, nil
}

// bookmarkListResponse is the wire shape of the passage-listing endpoint.
type bookmarkListResponse struct {
	Updated []struct {
		BookmarkID string `json:"bookmarkId"`
		MarkText   string `json:"markText"`
		CreateTime int64  `json:"createTime"`
		ChapterUID int64  `json:"chapterUid"`
	} `json:"updated"`
}

func (c *Client) fetchBookmarkList(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	params := url.Values{"bookId": {bookID}}

	resp, err := c.get(ctx, bookmarkListPath, params, false)
	if err != nil {
		return nil, err
	}

	var br bookmarkListResponse
	if err := decodeJSON(resp, bookmarkListPath, &br); err != nil {
		return nil, err
	}

	var out []model.Bookmark
	for _, item := range br.Updated {
		if item.MarkText == "" {
			continue
		}
		out = append(out, model.Bookmark{
			BookmarkID: item.BookmarkID,
			MarkText:   item.MarkText,
			CreateTime: item.CreateTime,
			ChapterUID: item.ChapterUID,
		})
	}
	return out, nil
}

// reviewListResponse is the wire shape of the reviews endpoint.
type reviewListResponse struct {
	Reviews []struct {
		Review struct {
			ReviewID   string `json:"reviewId"`
			Abstract   string `json:"abstract"`
			Content    string `json:"content"`
			CreateTime int64  `json:"createTime"`
		} `json:"review"`
	} `json:"reviews"`
}

func (c *Client) fetchReviewList(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	params := url.Values{
		"bookId":   {bookID},
		"listType": {"4"},
		"maxIdx":   {"0"},
		"count":    {"0"},
		"listMode": {"2"},
		"style":    {"2"},
		"syncKey":  {"0"},
	}

	resp, err := c.get(ctx, reviewListPath, params, false)
	if err != nil {
		return nil, err
	}

	var rr reviewListResponse
	if err := decodeJSON(resp, reviewListPath, &rr); err != nil {
		return nil, err
	}

	var out []model.Bookmark
	for _, item := range rr.Reviews {
		// Pure thoughts without a highlighted abstract are skipped.
		if item.Review.Abstract == "" {
			continue
		}
		out = append(out, model.Bookmark{
			BookmarkID: item.Review.ReviewID,
			MarkText:   item.Review.Abstract,
			NoteText:   item.Review.Content,
			CreateTime: item.Review.CreateTime,
		})
	}
	return out, nil
}

// bestBookmarksResponse is the wire shape of the public-highlights
// fallback endpoint.
type bestBookmarksResponse struct {
	Items []struct {
		Text string `json:"text"`
	} `json:"items"`
}

func (c *Client) fetchBestBookmarks(ctx context.Context, bookID string) ([]model.Bookmark, error) {
	params := url.Values{"bookId": {bookID}}

	resp, err := c.get(ctx, bestBookmarksPath, params, false)
	if err != nil {
		return nil, err
	}

	var br bestBookmarksResponse
	if err := decodeJSON(resp, bestBookmarksPath, &br); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	var out []model.Bookmark
	for _, item := range br.Items {
		if item.Text == "" {
			continue
		}
		out = append(out, model.Bookmark{
			MarkText:   item.Text,
			CreateTime: now,
			IsBest:     true,
		})
	}
	return out, nil
}
