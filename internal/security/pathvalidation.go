// Package security guards the paths the capture tool writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its directory.
var ErrPathEscape = errors.New("path escapes output directory")

// ValidatePathWithinDirectory checks that filePath stays inside dir once
// both are made absolute and symlinks are resolved. Paths that do not exist
// yet are resolved through their nearest existing ancestor, so a symlinked
// parent cannot redirect a new file elsewhere.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	realDir, err := resolveExisting(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}
	realPath, err := resolveExisting(absPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path symlinks: %w", err)
	}

	rel, err := filepath.Rel(realDir, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not within %s", ErrPathEscape, filePath, dir)
	}
	return nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and re-attaches the rest.
func resolveExisting(path string) (string, error) {
	var rest []string
	for cur := path; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// SanitizeFilename turns an arbitrary label into a safe file basename.
// Characters other than ASCII letters, digits, dot, underscore and dash
// become a single underscore, leading and trailing dots and underscores are
// trimmed, and the result is capped at 128 bytes. An empty result becomes
// "capture".
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		if b.Len() >= maxLen {
			break
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "capture"
	}
	return out
}
