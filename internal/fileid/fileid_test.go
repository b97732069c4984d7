package fileid

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

func TestImageID(t *testing.T) {
	id1 := ImageID("/photos/bar.jpg")
	id2 := ImageID("/photos/bar.jpg")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+32 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestImageID_differentPaths(t *testing.T) {
	if ImageID("/photos/bar.jpg") == ImageID("/photos/Bar.jpg") {
		t.Error("paths differing in case should give different IDs")
	}
}

func TestImageID_normalized(t *testing.T) {
	id1 := ImageID("/photos/bar")
	if id1 != ImageID("/photos/bar/") {
		t.Error("trailing slash should normalize")
	}
	if id1 != ImageID("/photos/./bar") {
		t.Error("paths with . should normalize")
	}
}

func TestImageID_urlSafe(t *testing.T) {
	abs, _ := filepath.Abs("some dir/ümlaut file.PNG")
	id := ImageID(abs)
	if url.PathEscape(id) != id {
		t.Errorf("ID is not URL safe: %q", id)
	}
}
