// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// WereadCookie is the statically configured fallback session cookie,
	// used when neither a per-request cookie nor CookieCloud yields one.
	WereadCookie string

	// CookieCloud remote credential store. Host and UUID enable it;
	// Password is required only when the store is encrypted.
	CookieCloudHost     string
	CookieCloudUUID     string
	CookieCloudPassword string

	// PriorityTitles are title substrings favored by the selection engine.
	PriorityTitles []string

	// BlacklistTitles are title substrings the selection engine never picks.
	BlacklistTitles []string

	// ScanLimit bounds how many candidate books one pick may fetch.
	ScanLimit int

	ListenAddr string
	DBPath     string
}

// HasCookieCloud returns true when the remote credential store is
// configured (host and store identifier both present).
func (c *Config) HasCookieCloud() bool {
	return c.CookieCloudHost != "" && c.CookieCloudUUID != ""
}

// Load reads configuration from the environment and returns a validated
// Config. A .env file in the working directory is loaded first when
// present; real environment variables take precedence over it. All
// variables are optional: with no credentials configured, requests only
// succeed when the caller supplies a cookie per request.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables already set in the
	// environment, so the precedence is env > .env > defaults.
	_ = godotenv.Load()

	scanLimit := 20
	if v, ok := os.LookupEnv("READFOCUS_SCAN_LIMIT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("READFOCUS_SCAN_LIMIT has invalid value %q: expected a positive integer", v)
		}
		scanLimit = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("READFOCUS_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "readfocus.db"
	if v, ok := os.LookupEnv("READFOCUS_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		WereadCookie:        os.Getenv("READFOCUS_WEREAD_COOKIE"),
		CookieCloudHost:     os.Getenv("READFOCUS_COOKIECLOUD_HOST"),
		CookieCloudUUID:     os.Getenv("READFOCUS_COOKIECLOUD_UUID"),
		CookieCloudPassword: os.Getenv("READFOCUS_COOKIECLOUD_PASSWORD"),
		PriorityTitles:      splitList(os.Getenv("READFOCUS_PRIORITY_TITLES")),
		BlacklistTitles:     splitList(os.Getenv("READFOCUS_BLACKLIST_TITLES")),
		ScanLimit:           scanLimit,
		ListenAddr:          listenAddr,
		DBPath:              dbPath,
	}, nil
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empty entries. Returns an empty slice, never nil.
func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
