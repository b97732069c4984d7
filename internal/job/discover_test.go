package job

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExtensions(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"png", ".JPG", " .gif ", "", ".", "PNG"}, []string{".png", ".jpg", ".gif"}},
		{[]string{".webp"}, []string{".webp"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeExtensions(tt.in), "%v", tt.in)
	}
}

func TestMergeExtensions(t *testing.T) {
	got := MergeExtensions(DefaultExtensions, []string{"tiff", ".JPG"})
	assert.Equal(t, []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tiff"}, got)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	files := []string{"b.png", "A.JPG", "sub/z.gif", "sub/deep/y.jpeg", "skip.txt", "noext"}
	for _, f := range files {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "folder.png"), 0o755))

	got, err := Discover(context.Background(), dir, NormalizeExtensions(DefaultExtensions), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "A.JPG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "deep", "y.jpeg"),
		filepath.Join(dir, "sub", "z.gif"),
	}, got)
}

func TestDiscover_FollowsFileSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.png")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	if err := os.Symlink(target, filepath.Join(dir, "link.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.png"), filepath.Join(dir, "dangling.png")))

	got, err := Discover(context.Background(), dir, []string{".png"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "link.png")}, got)
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), []string{".png"}, nil)
	assert.Error(t, err)
}
