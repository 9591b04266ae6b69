package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins only the base name of name onto root, so CSV-supplied names cannot escape it.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// WithinDir resolves requested against root and rejects any result outside root. An empty
// request resolves to root itself.
func WithinDir(root, requested string) (string, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	target := strings.TrimSpace(requested)
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrConfiguration, requested, root)
	}
	return target, nil
}

// IsEmptyFile reports whether path is missing or has zero length.
func IsEmptyFile(path string) (bool, error) {
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return st.Size() == 0, nil
}
