package job

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultExtensions is the image allow-list used when none is configured.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif"}

// NormalizeExtensions lower-cases each extension, ensures the leading dot, and drops
// blanks and duplicates, keeping first-seen order.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// MergeExtensions returns the normalized union of defaults and extra.
func MergeExtensions(defaults, extra []string) []string {
	all := make([]string, 0, len(defaults)+len(extra))
	all = append(all, defaults...)
	all = append(all, extra...)
	return NormalizeExtensions(all)
}

func extensionAllowed(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}

// Discover walks root recursively in lexical order and returns the absolute paths of
// regular files (symlinks resolved) whose extension is in allowed, which must already
// be normalized. Unreadable subdirectories are logged and skipped.
func Discover(ctx context.Context, root string, allowed []string, logger *zap.Logger) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			if logger != nil {
				logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !extensionAllowed(path, allowed) {
			return nil
		}
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
