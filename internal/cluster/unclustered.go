package cluster

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/hyperjump/ruiji/internal/vector"
)

// SortBy selects the ordering of the unclustered set.
type SortBy int

const (
	// ByName orders by base filename, case-insensitively.
	ByName SortBy = iota
	// ByCreationTime orders by file creation time, oldest first.
	ByCreationTime
)

// String returns the query-string form of s.
func (s SortBy) String() string {
	switch s {
	case ByName:
		return "name"
	case ByCreationTime:
		return "date_of_creation"
	default:
		return fmt.Sprintf("SortBy(%d)", int(s))
	}
}

// ParseSortBy maps "name" (or empty) and "date_of_creation" (or "created") to a SortBy.
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return ByName, nil
	case "date_of_creation", "created":
		return ByCreationTime, nil
	default:
		return ByName, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
}

// TimeFunc returns the creation time of the file at path.
type TimeFunc func(path string) (time.Time, error)

// CreationTime returns the birth time of path where the filesystem records one,
// otherwise the inode change time, otherwise the modification time.
func CreationTime(path string) (time.Time, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	if ts.HasBirthTime() {
		return ts.BirthTime(), nil
	}
	if ts.HasChangeTime() {
		return ts.ChangeTime(), nil
	}
	return ts.ModTime(), nil
}

// Unclustered returns every identifier of snap that is not a member of clusters,
// ordered by sortBy with ties broken on the full path. For ByCreationTime a nil
// created uses CreationTime; files whose time cannot be read sort first.
func Unclustered(snap *vector.Snapshot, clusters []Cluster, sortBy SortBy, created TimeFunc) []string {
	if snap == nil {
		return []string{}
	}
	inCluster := make(map[string]struct{})
	for _, c := range clusters {
		for _, id := range c {
			inCluster[id] = struct{}{}
		}
	}
	out := make([]string, 0, snap.Len())
	for _, id := range snap.IDs {
		if _, ok := inCluster[id]; !ok {
			out = append(out, id)
		}
	}

	switch sortBy {
	case ByCreationTime:
		if created == nil {
			created = CreationTime
		}
		keys := make(map[string]time.Time, len(out))
		for _, id := range out {
			t, err := created(id)
			if err != nil {
				t = time.Time{}
			}
			keys[id] = t
		}
		sort.Slice(out, func(i, j int) bool {
			ti, tj := keys[out[i]], keys[out[j]]
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return out[i] < out[j]
		})
	default:
		sort.Slice(out, func(i, j int) bool {
			ni := strings.ToLower(filepath.Base(out[i]))
			nj := strings.ToLower(filepath.Base(out[j]))
			if ni != nj {
				return ni < nj
			}
			return out[i] < out[j]
		})
	}
	return out
}
