package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://libraries.example.net/com/mojang/brigadier/1.1.8/brigadier-1.1.8.jar", "brigadier-1.1.8.jar"},
		{"https://example.net/indexes/12.json?token=abc", "12.json"},
		{"https://example.net/a/b.jar#frag", "b.jar"},
		{"plain.jar", "plain.jar"},
		{"dir/plain.jar", "plain.jar"},
	}
	for _, test := range tests {
		if got := FileNameFromURL(test.input); got != test.expected {
			t.Errorf("FileNameFromURL(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestLibraryPath(t *testing.T) {
	l := New("/games/root")
	got := l.LibraryPath("https://example.net/org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar")
	want := filepath.Join("/games/root", "libs", "lwjgl-3.3.1.jar")
	if got != want {
		t.Fatalf("LibraryPath = %q, want %q", got, want)
	}
}

func TestAssetPath(t *testing.T) {
	l := New("/games/root")
	hash := "2e630d9df93d600d90dca070c96e3aa89237afa9"

	dir, file, err := l.AssetPath(hash)
	if err != nil {
		t.Fatalf("AssetPath() failed: %v", err)
	}
	wantFile := filepath.Join("/games/root", "assets", "objects", "2e", hash)
	if file != wantFile {
		t.Errorf("file = %q, want %q", file, wantFile)
	}
	wantDir := filepath.Join("/games/root", "assets", "objects")
	if dir != wantDir {
		t.Errorf("dir = %q, want %q", dir, wantDir)
	}
}

func TestAssetPath_ContentAddressed(t *testing.T) {
	l := New(t.TempDir())
	hash := "bdf48ef6b5d0d23bbb02e17d04865216179f510a"

	// Two differently named assets sharing a hash land on one path.
	_, a, errA := l.AssetPath(hash)
	_, b, errB := l.AssetPath(hash)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Fatalf("expected identical paths, got %q and %q", a, b)
	}
}

func TestAssetPath_Malformed(t *testing.T) {
	l := New("/games/root")
	for _, h := range []string{"", "a"} {
		if _, _, err := l.AssetPath(h); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("AssetPath(%q) error = %v, want ErrMalformedHash", h, err)
		}
	}
	if _, _, err := l.AssetPath("ab"); err != nil {
		t.Errorf("AssetPath(\"ab\") unexpected error: %v", err)
	}
}

func TestFixedPaths(t *testing.T) {
	l := New("/r")
	if got, want := l.GameArtifactPath(), filepath.Join("/r", "client.jar"); got != want {
		t.Errorf("GameArtifactPath = %q, want %q", got, want)
	}
	if got, want := l.IndexPath("https://x/indexes/17.json"), filepath.Join("/r", "assets", "indexes", "17.json"); got != want {
		t.Errorf("IndexPath = %q, want %q", got, want)
	}
	if got, want := l.RuntimeArchivePath(), filepath.Join("/r", "runtime", "runtime.zip"); got != want {
		t.Errorf("RuntimeArchivePath = %q, want %q", got, want)
	}
}

func TestEnsure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "install")
	l := New(root)
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	for _, d := range []string{"libs", "runtime", filepath.Join("assets", "indexes"), filepath.Join("assets", "objects")} {
		info, err := os.Stat(filepath.Join(root, d))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", d)
		}
	}
	// idempotent
	if err := l.Ensure(); err != nil {
		t.Fatalf("second Ensure() failed: %v", err)
	}
}

func TestEnsure_EmptyRoot(t *testing.T) {
	if err := (Layout{}).Ensure(); err == nil {
		t.Fatal("expected error for empty root")
	}
}
