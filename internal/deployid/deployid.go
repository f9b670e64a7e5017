// Package deployid generates identifiers for uploaded service packages.
//
// Format: pkg_<timestamp>_<random>
//   - timestamp: UTC YYYYMMDD'T'HHmmss'Z'
//   - random:    8 lowercase hex characters from crypto/rand
//
// Example: pkg_20260213T200102Z_6f2c9a1b
//
// IDs sort lexically in creation order (to the second).
package deployid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	prefix       = "pkg_"
	timestampFmt = "20060102T150405Z"
	randomBytes  = 4
)

// New returns a package ID stamped with the current UTC time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a package ID stamped with t.
func NewAt(t time.Time) string {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("deployid: crypto/rand failed: %v", err))
	}
	return prefix + t.UTC().Format(timestampFmt) + "_" + hex.EncodeToString(b)
}

// Parse extracts the timestamp from a package ID.
func Parse(id string) (time.Time, error) {
	if !strings.HasPrefix(id, prefix) {
		return time.Time{}, fmt.Errorf("deployid: invalid prefix in %q", id)
	}

	parts := strings.SplitN(id[len(prefix):], "_", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("deployid: missing random segment in %q", id)
	}

	ts, err := time.Parse(timestampFmt, parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("deployid: bad timestamp in %q: %w", id, err)
	}

	if len(parts[1]) != randomBytes*2 {
		return time.Time{}, fmt.Errorf("deployid: random segment wrong length in %q", id)
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return time.Time{}, fmt.Errorf("deployid: random segment not hex in %q: %w", id, err)
	}

	return ts, nil
}

// IsValid reports whether id is a well-formed package ID.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// SortNewestFirst filters ids down to valid package IDs and orders them
// newest first.
func SortNewestFirst(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if IsValid(id) {
			out = append(out, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
