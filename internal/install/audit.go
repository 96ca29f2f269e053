package install

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gamefetch/internal/download"
	"gamefetch/internal/logging"
	"gamefetch/internal/manifest"
)

type auditTarget struct {
	kind string
	path string
	hash string
}

// Audit re-verifies every library, asset, the asset index and the game
// artifact of v against their expected hashes. It reports problems and
// never modifies the tree. Mismatches are sorted by path.
func (i *Installer) Audit(ctx context.Context, v *manifest.Version, idx *manifest.AssetIndex) []Mismatch {
	targets := i.auditTargets(v, idx)

	var (
		mu  sync.Mutex
		out []Mismatch
		wg  sync.WaitGroup
		sem = make(chan struct{}, i.opts.Workers)
	)
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(t auditTarget) {
			defer wg.Done()
			defer func() { <-sem }()
			m, ok := check(t)
			if ok {
				return
			}
			logging.LogAuditMismatch(t.kind, t.path, t.hash)
			mu.Lock()
			out = append(out, m)
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out
}

func (i *Installer) auditTargets(v *manifest.Version, idx *manifest.AssetIndex) []auditTarget {
	osName := i.opts.OS
	if osName == "" {
		osName = manifest.CurrentOS()
	}
	seen := make(map[string]struct{})
	var targets []auditTarget
	add := func(kind, path, hash string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		targets = append(targets, auditTarget{kind: kind, path: path, hash: hash})
	}

	for _, lib := range v.AllowedLibraries(osName) {
		art := lib.Downloads.Artifact
		add("library", i.layout.LibraryPath(art.URL), art.SHA1)
	}
	if v.AssetIndex.URL != "" {
		add("index", i.layout.IndexPath(v.AssetIndex.URL), v.AssetIndex.SHA1)
	}
	if idx != nil {
		for _, obj := range idx.Objects {
			_, file, err := i.layout.AssetPath(obj.Hash)
			if err != nil {
				continue
			}
			add("asset", file, obj.Hash)
		}
	}
	if c := v.Downloads.Client; c.URL != "" {
		add("client", i.layout.GameArtifactPath(), c.SHA1)
	}
	return targets
}

func check(t auditTarget) (Mismatch, bool) {
	m := Mismatch{Kind: t.kind, Path: t.path, Expected: t.hash}
	if _, err := os.Stat(t.path); err != nil {
		m.Missing = true
		return m, false
	}
	if t.hash == "" {
		return m, true
	}
	return m, download.Verify(t.path, t.hash)
}

// VerifyVersion resolves versionID and audits the installed tree without
// downloading anything.
func (i *Installer) VerifyVersion(ctx context.Context, versionID string) ([]Mismatch, error) {
	v, err := i.source.ResolveVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("resolve version %s: %w", versionID, err)
	}
	idx, err := i.source.LoadAssetIndex(ctx, v.AssetIndex)
	if err != nil {
		return nil, fmt.Errorf("load asset index %s: %w", v.AssetIndex.ID, err)
	}
	out := i.Audit(ctx, v, idx)
	return out, ctx.Err()
}
