// Package cookiecloud implements the CredentialSource port against a
// CookieCloud server: a remote key-value store holding browser cookies,
// optionally encrypted with a password-derived key.
package cookiecloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialSource = (*Client)(nil)

// Domain keys looked up in the synced cookie map, in order.
var wereadDomainKeys = []string{"weread.qq.com", ".weread.qq.com"}

const fetchTimeout = 10 * time.Second

// Client fetches and decrypts the WeRead cookie set from a CookieCloud
// server. It is stateless; every Fetch is an independent GET.
type Client struct {
	host       string
	uuid       string
	password   string
	httpClient *http.Client
}

// NewClient creates a Client for the given CookieCloud endpoint host and
// store identifier. password may be empty when the store is not encrypted.
func NewClient(host, uuid, password string) *Client {
	return &Client{
		host:       strings.TrimRight(host, "/"),
		uuid:       uuid,
		password:   password,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, host, uuid, password string) *Client {
	return &Client{
		host:       strings.TrimRight(host, "/"),
		uuid:       uuid,
		password:   password,
		httpClient: httpClient,
	}
}

// storeDocument is the JSON document served by GET {host}/get/{uuid}.
// Either Encrypted carries an OpenSSL salted envelope, or CookieData
// carries the plaintext domain→cookie-list map directly.
type storeDocument struct {
	Encrypted  string          `json:"encrypted"`
	CookieData json.RawMessage `json:"cookie_data"`
}

// cookieEntry is one synced browser cookie.
type cookieEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Fetch retrieves the WeRead cookie string from the store. It returns
// ("", nil) when the store has no entry for the WeRead domain. Errors are
// advisory: the credential resolver logs them and falls through to the next
// source, so this path never blocks the fallback chain.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/get/%s", c.host, c.uuid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch credential store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("credential store returned status %d", resp.StatusCode)
	}

	var doc storeDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode store document: %w", err)
	}

	cookieMap, err := c.cookieMap(doc)
	if err != nil {
		return "", err
	}

	for _, key := range wereadDomainKeys {
		if entries, ok := cookieMap[key]; ok && len(entries) > 0 {
			slog.Debug("cookiecloud credential loaded", "domain", key, "cookies", len(entries))
			return joinCookies(entries), nil
		}
	}

	slog.Warn("cookiecloud sync has no weread domain entry")
	return "", nil
}

// cookieMap extracts the domain→cookie-list map from the store document,
// decrypting when necessary.
func (c *Client) cookieMap(doc storeDocument) (map[string][]cookieEntry, error) {
	if doc.Encrypted == "" {
		if len(doc.CookieData) == 0 {
			return nil, errors.New("store document has neither encrypted nor cookie_data field")
		}
		var m map[string][]cookieEntry
		if err := json.Unmarshal(doc.CookieData, &m); err != nil {
			return nil, fmt.Errorf("parse plaintext cookie_data: %w", err)
		}
		return m, nil
	}

	if c.password == "" {
		return nil, errors.New("store is encrypted but no password configured")
	}

	plaintext, err := DecryptEnvelope(doc.Encrypted, DeriveKey(c.uuid, c.password))
	if err != nil {
		return nil, fmt.Errorf("decrypt store payload: %w", err)
	}

	return parseDecryptedPayload(plaintext)
}

// parseDecryptedPayload parses the decrypted UTF-8 JSON, unwrapping one
// level of string double-encoding and a cookie_data sub-object if present.
func parseDecryptedPayload(plaintext []byte) (map[string][]cookieEntry, error) {
	payload := plaintext
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, fmt.Errorf("unwrap double-encoded payload: %w", err)
		}
		payload = []byte(inner)
	}

	// The payload is either the domain map itself or an object wrapping it
	// under cookie_data.
	var wrapper struct {
		CookieData json.RawMessage `json:"cookie_data"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, fmt.Errorf("parse decrypted payload: %w", err)
	}
	if len(wrapper.CookieData) > 0 {
		payload = wrapper.CookieData
	}

	var m map[string][]cookieEntry
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("parse cookie map: %w", err)
	}
	return m, nil
}

// joinCookies serializes cookie entries to the "name=value; name=value"
// credential form.
func joinCookies(entries []cookieEntry) string {
	pairs := make([]model.CookiePair, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, model.CookiePair{Name: e.Name, Value: e.Value})
	}
	return model.Credential{}.Merge(pairs).String()
}
