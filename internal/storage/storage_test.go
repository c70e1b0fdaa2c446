package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "album"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	disk := NewDisk(dir)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "existing file", path: "photo.jpg", want: true},
		{name: "missing file", path: "gone.jpg", want: false},
		{name: "directory is not a file", path: "album", want: false},
		{name: "absolute path", path: path, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := disk.Exists(tt.path); got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDiskOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	disk := NewDisk(dir)

	rc, err := disk.Open("photo.jpg")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("read %q, want %q", data, "payload")
	}

	if _, err := disk.Open("missing.jpg"); err == nil {
		t.Error("Open of missing file should return an error")
	}
}

func TestDiskRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secret"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	disk := NewDisk(filepath.Join(dir, "media"))

	if _, err := disk.Open("../secret"); err == nil {
		t.Error("Open of a traversal path should return an error")
	}
	if disk.Exists("../secret") {
		t.Error("Exists(\"../secret\") = true, want false")
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "simple", path: "album/photo.jpg", want: "album/photo.jpg", wantOK: true},
		{name: "dot segments collapsed", path: "album/./photo.jpg", want: "album/photo.jpg", wantOK: true},
		{name: "internal parent ok", path: "album/sub/../photo.jpg", want: "album/photo.jpg", wantOK: true},
		{name: "escape rejected", path: "../etc/passwd", wantOK: false},
		{name: "bare parent rejected", path: "..", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Clean(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Clean(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != filepath.FromSlash(tt.want) {
				t.Errorf("Clean(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsNFSStaleError(t *testing.T) {
	t.Parallel()

	if isNFSStaleError(nil) {
		t.Error("nil error should not be stale")
	}
	if isNFSStaleError(os.ErrNotExist) {
		t.Error("not-exist error should not be stale")
	}
}
