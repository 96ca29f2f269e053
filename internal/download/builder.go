package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gamefetch/internal/layout"
	"gamefetch/internal/logging"
	"gamefetch/internal/manifest"
)

// BuilderOptions configures a SetBuilder.
type BuilderOptions struct {
	// AssetBaseURL prefixes asset object URLs: <base>/<hash[0:2]>/<hash>.
	AssetBaseURL string

	// OS selects libraries by their rules. Defaults to the running OS.
	OS string

	// VerifyExisting re-hashes files that are already present and queues
	// the ones that do not match. Off by default: presence means done.
	VerifyExisting bool
}

// SetBuilder accumulates the pending entries for one installation. It keeps
// at most one entry per destination path.
type SetBuilder struct {
	layout    layout.Layout
	opts      BuilderOptions
	entries   []Entry
	seen      map[string]string // path -> expected hash
	skipped   int
	conflicts int
}

// NewSetBuilder returns an empty builder for l.
func NewSetBuilder(l layout.Layout, opts BuilderOptions) *SetBuilder {
	if opts.OS == "" {
		opts.OS = manifest.CurrentOS()
	}
	opts.AssetBaseURL = strings.TrimRight(opts.AssetBaseURL, "/")
	return &SetBuilder{
		layout: l,
		opts:   opts,
		seen:   make(map[string]string),
	}
}

// PopulateLibraries queues every allowed library and the asset index
// document of v.
func (b *SetBuilder) PopulateLibraries(v *manifest.Version) error {
	for _, lib := range v.AllowedLibraries(b.opts.OS) {
		art := lib.Downloads.Artifact
		if err := b.add(art.URL, b.layout.LibraryPath(art.URL), art.SHA1); err != nil {
			return fmt.Errorf("library %s: %w", lib.Name, err)
		}
	}
	if v.AssetIndex.URL != "" {
		if err := b.add(v.AssetIndex.URL, b.layout.IndexPath(v.AssetIndex.URL), v.AssetIndex.SHA1); err != nil {
			return fmt.Errorf("asset index %s: %w", v.AssetIndex.ID, err)
		}
	}
	return nil
}

// PopulateAssets queues every object of idx. Object directories are created
// eagerly. A malformed hash aborts population.
func (b *SetBuilder) PopulateAssets(idx *manifest.AssetIndex) error {
	for name, obj := range idx.Objects {
		dir, file, err := b.layout.AssetPath(obj.Hash)
		if err != nil {
			return fmt.Errorf("asset %s: %w", name, err)
		}
		if _, err := os.Stat(dir); err != nil {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("asset %s: %w: %v", name, ErrIO, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("asset %s: %w: %v", name, ErrIO, err)
		}
		url := b.opts.AssetBaseURL + "/" + obj.Hash[:2] + "/" + obj.Hash
		if err := b.add(url, file, obj.Hash); err != nil {
			return fmt.Errorf("asset %s: %w", name, err)
		}
	}
	return nil
}

// PopulateGameArtifact queues the game client.
func (b *SetBuilder) PopulateGameArtifact(v *manifest.Version) error {
	c := v.Downloads.Client
	if c.URL == "" {
		return nil
	}
	return b.add(c.URL, b.layout.GameArtifactPath(), c.SHA1)
}

// PopulateRuntime queues the runtime archive unless a runtime is already
// extracted. It reports whether an archive is due for extraction once the
// round loop finishes: either it was queued now, or an earlier run
// downloaded it and never extracted it.
func (b *SetBuilder) PopulateRuntime(url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	if info, err := os.Stat(b.layout.RuntimeBinDir()); err == nil && info.IsDir() {
		b.skipped++
		return false, nil
	}
	if err := b.add(url, b.layout.RuntimeArchivePath(), ""); err != nil {
		return false, err
	}
	return true, nil
}

// Entries returns a copy of the pending set. Order carries no meaning.
func (b *SetBuilder) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Conflicts returns how many candidates named an already claimed path with a
// different expected hash. The first candidate wins.
func (b *SetBuilder) Conflicts() int {
	return b.conflicts
}

// Skipped returns how many candidates were already present.
func (b *SetBuilder) Skipped() int {
	return b.skipped
}

func (b *SetBuilder) add(url, path, hash string) error {
	if kept, dup := b.seen[path]; dup {
		if kept != hash {
			b.conflicts++
			logging.LogPathConflict(path, kept, url, hash)
		}
		return nil
	}
	present, err := b.present(path, hash)
	if err != nil {
		return err
	}
	b.seen[path] = hash
	if present {
		b.skipped++
		return nil
	}
	b.entries = append(b.entries, NewEntry(url, path, hash))
	return nil
}

// present reports whether path can be skipped. With VerifyExisting a
// mismatching file is removed so the transfer will rewrite it.
func (b *SetBuilder) present(path, hash string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if !b.opts.VerifyExisting || hash == "" {
		return true, nil
	}
	if Verify(path, hash) {
		return true, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("%w: remove stale %s: %v", ErrIO, path, err)
	}
	return false, nil
}
