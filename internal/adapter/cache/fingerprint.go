package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ComputeFingerprint concatenates name:mtime_ns:size of every existing path,
// in the given order, separated by '|'. Missing paths contribute nothing.
//
// This is a freshness check, not a content hash: a rewrite that keeps both
// size and modification time goes unnoticed.
func ComputeFingerprint(paths ...string) string {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", filepath.Base(path), info.ModTime().UnixNano(), info.Size()))
	}
	return strings.Join(parts, "|")
}
