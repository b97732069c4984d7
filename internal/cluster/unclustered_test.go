package cluster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortBy(t *testing.T) {
	cases := map[string]SortBy{
		"":                 ByName,
		"name":             ByName,
		"date_of_creation": ByCreationTime,
		"created":          ByCreationTime,
		"CREATED":          ByCreationTime,
	}
	for in, want := range cases {
		got, err := ParseSortBy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSortBy("size")
	assert.ErrorIs(t, err, ErrInvalidSort)
	assert.Equal(t, "date_of_creation", ByCreationTime.String())
}

func TestUnclustered_ByName(t *testing.T) {
	snap := snapshotOf(t,
		[]string{"/z/b.png", "/a/C.png", "/y/a.png", "/x/a.png", "/k/Dup.png"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {1, -1}, {-1, 1}})
	got := Unclustered(snap, []Cluster{{"/k/Dup.png"}}, ByName, nil)
	assert.Equal(t, []string{"/x/a.png", "/y/a.png", "/z/b.png", "/a/C.png"}, got)
}

func TestUnclustered_ByCreationTime(t *testing.T) {
	snap := snapshotOf(t,
		[]string{"/p/new.png", "/p/old.png", "/p/b-mid.png", "/p/a-mid.png", "/p/gone.png"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {1, -1}, {-1, 1}})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := map[string]time.Time{
		"/p/new.png":   base.Add(3 * time.Hour),
		"/p/old.png":   base,
		"/p/b-mid.png": base.Add(time.Hour),
		"/p/a-mid.png": base.Add(time.Hour),
	}
	fn := func(path string) (time.Time, error) {
		if ts, ok := created[path]; ok {
			return ts, nil
		}
		return time.Now(), errors.New("stat failed")
	}
	got := Unclustered(snap, nil, ByCreationTime, fn)
	assert.Equal(t, []string{"/p/gone.png", "/p/old.png", "/p/a-mid.png", "/p/b-mid.png", "/p/new.png"}, got)
}

func TestCreationTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	ts, err := CreationTime(path)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)

	_, err = CreationTime(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
