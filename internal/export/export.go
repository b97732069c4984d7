// Package export copies selected images from a job root into a sibling folder,
// keeping their relative layout.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/djherbis/times"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ruiji/pkg/utils"
)

var (
	// ErrNoSelection is returned when no images were selected.
	ErrNoSelection = errors.New("no images selected")
	// ErrNoRoot is returned when no job has set a root folder yet.
	ErrNoRoot = errors.New("no folder has been processed")
	// ErrOutsideRoot marks a selected path that does not resolve inside the root.
	ErrOutsideRoot = errors.New("path is outside the root folder")
	// ErrNotFound marks a selected file that exists under no letter case.
	ErrNotFound = errors.New("file not found")
)

const (
	DefaultSuffix  = "_copy"
	DefaultWorkers = 4
)

// Failure is a selected file that could not be copied.
type Failure struct {
	Path string
	Err  error
}

// Result describes a finished export.
type Result struct {
	ExportRoot string
	Copied     int
	Failed     []Failure
}

// Exporter copies files into <root><suffix>.
type Exporter struct {
	suffix  string
	workers int
	logger  *zap.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger for copy failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithSuffix sets the suffix appended to the root to name the export folder.
func WithSuffix(suffix string) Option {
	return func(e *Exporter) {
		if suffix != "" {
			e.suffix = suffix
		}
	}
}

// WithWorkers bounds the number of concurrent copies.
func WithWorkers(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New returns an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{suffix: DefaultSuffix, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// ExportRoot returns the folder Export writes into for root.
func (e *Exporter) ExportRoot(root string) string {
	return filepath.Clean(root) + e.suffix
}

// Export copies each selected file into the export folder. Entries are paths relative
// to root (optionally URL-escaped) or absolute paths under root. Files that cannot be
// copied are reported in Result.Failed, in selection order, and do not stop the others.
func (e *Exporter) Export(ctx context.Context, root string, selected []string) (*Result, error) {
	if root == "" {
		return nil, ErrNoRoot
	}
	root = filepath.Clean(root)
	rels := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		rels = append(rels, s)
	}
	if len(rels) == 0 {
		return nil, ErrNoSelection
	}

	res := &Result{ExportRoot: e.ExportRoot(root)}
	errs := make([]error, len(rels))
	srcs := make([]string, len(rels))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range rels {
		rel, err := relativeTo(root, entry)
		if err != nil {
			srcs[i], errs[i] = entry, err
			continue
		}
		srcs[i] = filepath.Join(root, rel)
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		i := i
		g.Go(func() error {
			src, err := resolveCaseInsensitive(srcs[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			srcs[i] = src
			errs[i] = copyFile(src, filepath.Join(res.ExportRoot, rel))
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			res.Copied++
			continue
		}
		e.logger.Warn("export copy failed", zap.String("path", srcs[i]), zap.Error(err))
		res.Failed = append(res.Failed, Failure{Path: srcs[i], Err: err})
	}
	e.logger.Info("export finished",
		zap.String("export_root", res.ExportRoot),
		zap.Int("copied", res.Copied),
		zap.Int("failed", len(res.Failed)),
	)
	return res, ctx.Err()
}

// relativeTo turns a selection entry into a clean path relative to root.
func relativeTo(root, entry string) (string, error) {
	if unescaped, err := url.PathUnescape(entry); err == nil {
		entry = unescaped
	}
	p := filepath.FromSlash(entry)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, entry)
	}
	return rel, nil
}

// resolveCaseInsensitive returns path if it exists, otherwise the entry of its
// directory whose name matches the base name ignoring case.
func resolveCaseInsensitive(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	dir, base := filepath.Split(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	for _, de := range entries {
		if strings.EqualFold(de.Name(), base) {
			return filepath.Join(dir, de.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// copyFile copies src to dst, creating parent directories and preserving the
// permission bits and the access and modification times.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, times.Get(info).AccessTime(), info.ModTime())
}
