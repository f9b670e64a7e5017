package packaging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const hashPrefix = "sha256:"

// FileHash returns the SHA-256 of the file at path as "sha256:<hex>".
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("packaging: open for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("packaging: read for hash: %w", err)
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// BytesHash returns the SHA-256 of data as "sha256:<hex>".
func BytesHash(data []byte) string {
	h := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(h[:])
}

// PackageHash hashes a set of path -> "sha256:<hex>" entries. Keys are
// sorted and each contributes "<path>\0<hex>\n".
func PackageHash(files map[string]string) string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k + "\x00" + strings.TrimPrefix(files[k], hashPrefix) + "\n"))
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}
