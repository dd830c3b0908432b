package sqlite

import (
	"fmt"
	"time"
)

// parseTime parses a timestamp stored by SQLite. CURRENT_TIMESTAMP writes
// "2006-01-02 15:04:05" (UTC); values written from Go may be RFC 3339.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
