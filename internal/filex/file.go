// Package filex contains filesystem helpers for file-backed databases.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLiteFilePath extracts the on-disk path from a SQLite DSN such as
// "users.db" or "file:data/users.db?_pragma=busy_timeout(5000)".
// In-memory databases return "".
func SQLiteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	path, query, _ := strings.Cut(path, "?")

	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return path
}

// EnsureParentDir creates the directory that will hold path, if missing.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
