package layout

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrMalformedHash is returned when a content hash is too short to derive
// its object directory.
var ErrMalformedHash = errors.New("malformed_hash")

const (
	LibrariesDir  = "libs"
	AssetsDir     = "assets"
	ObjectsDir    = "objects"
	IndexesDir    = "indexes"
	RuntimeDir    = "runtime"
	GameArtifact  = "client.jar"
	RuntimeBundle = "runtime.zip"
)

// Layout resolves destination paths inside an installation root.
// All methods are pure; only Ensure touches the filesystem.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// FileNameFromURL returns the trailing path segment of rawURL.
// Query strings and fragments are ignored.
func FileNameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// LibraryPath maps a library URL to libs/<filename>.
func (l Layout) LibraryPath(rawURL string) string {
	return filepath.Join(l.Root, LibrariesDir, FileNameFromURL(rawURL))
}

// AssetPath maps a content hash to assets/objects/<hash[0:2]>/<hash>.
// dir is the parent of the prefix directory and is used for existence checks
// before directories are created.
func (l Layout) AssetPath(hash string) (dir, file string, err error) {
	if len(hash) < 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedHash, hash)
	}
	file = filepath.Join(l.Root, AssetsDir, ObjectsDir, hash[:2], hash)
	dir = filepath.Dir(filepath.Dir(file))
	return dir, file, nil
}

// IndexPath maps an asset index URL to assets/indexes/<filename>.
func (l Layout) IndexPath(rawURL string) string {
	return filepath.Join(l.Root, AssetsDir, IndexesDir, FileNameFromURL(rawURL))
}

// GameArtifactPath is the fixed root-level location of the game artifact.
func (l Layout) GameArtifactPath() string {
	return filepath.Join(l.Root, GameArtifact)
}

// RuntimeDir is where the runtime bundle is extracted.
func (l Layout) RuntimeDir() string {
	return filepath.Join(l.Root, RuntimeDir)
}

// RuntimeArchivePath is the download location of the runtime bundle.
func (l Layout) RuntimeArchivePath() string {
	return filepath.Join(l.Root, RuntimeDir, RuntimeBundle)
}

// RuntimeBinDir marks an already extracted runtime.
func (l Layout) RuntimeBinDir() string {
	return filepath.Join(l.Root, RuntimeDir, "bin")
}

// Ensure creates the top-level directory tree. Asset object directories are
// created lazily by the download set builder.
func (l Layout) Ensure() error {
	if l.Root == "" || l.Root == "." {
		return errors.New("layout: empty root directory")
	}
	dirs := []string{
		l.Root,
		filepath.Join(l.Root, LibrariesDir),
		filepath.Join(l.Root, RuntimeDir),
		filepath.Join(l.Root, AssetsDir, IndexesDir),
		filepath.Join(l.Root, AssetsDir, ObjectsDir),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
