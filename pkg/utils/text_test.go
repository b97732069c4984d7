package utils

import (
	"path/filepath"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	for _, name := range []string{"фотографии_лето.jpg", "写真の夏休み.png"} {
		got := Truncate(name, 4)
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q) produced invalid UTF-8: %q", name, got)
		}
		if want := string([]rune(name)[:4]) + "..."; got != want {
			t.Errorf("Truncate(%q) = %q, want %q", name, got, want)
		}
	}
	if got := Truncate("日本", 2); got != "日本" {
		t.Errorf("rune count within limit: got %q", got)
	}
}

func TestRelPath(t *testing.T) {
	root := filepath.Join("/photos", "2009")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "a.jpg"), "a.jpg"},
		{filepath.Join(root, "trip", "b.jpg"), filepath.Join("trip", "b.jpg")},
		{filepath.Join("/photos", "other", "c.jpg"), filepath.Join("/photos", "other", "c.jpg")},
	}
	for _, tt := range tests {
		if got := RelPath(root, tt.path); got != tt.want {
			t.Errorf("RelPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if got := RelPath("", "/x/y.png"); got != "/x/y.png" {
		t.Errorf("empty root: got %q", got)
	}
}
