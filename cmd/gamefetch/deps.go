package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gamefetch/internal/cache"
	"gamefetch/internal/download"
	"gamefetch/internal/httpclient"
	"gamefetch/internal/install"
	"gamefetch/internal/jre"
	"gamefetch/internal/layout"
	"gamefetch/internal/manifest"
	"gamefetch/internal/progress"
	"gamefetch/internal/store"
)

func (a *app) httpClient() *httpclient.Client {
	opts := httpclient.DefaultOptions()
	opts.Timeout = a.cfg.RequestTimeout
	opts.MaxIdleConnsPerHost = max(opts.MaxIdleConnsPerHost, a.cfg.Workers)
	return httpclient.New(opts)
}

func (a *app) source(hc *httpclient.Client) *manifest.HTTPSource {
	return manifest.NewHTTPSource(hc, a.cfg.ManifestURL)
}

// fetcher builds the chain cache -> mirrors -> origin. The returned func
// releases the cache bucket.
func (a *app) fetcher(ctx context.Context, hc *httpclient.Client) (download.Fetcher, func(), error) {
	var f download.Fetcher = download.DirectFetcher{Client: hc}
	if len(a.cfg.Mirrors) > 0 {
		f = download.NewMirrorFetcher(hc.HTTPClient(), a.cfg.Mirrors, f)
	}
	if a.cfg.CacheURL == "" {
		return f, func() {}, nil
	}
	c, err := cache.Open(ctx, a.cfg.CacheURL)
	if err != nil {
		return nil, nil, withCode(ExitStorageError, err)
	}
	return download.CachedFetcher{Cache: c, Next: f}, func() { _ = c.Close() }, nil
}

func (a *app) openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.AbsDBPath), 0o755); err != nil {
		return nil, withCode(ExitStorageError, fmt.Errorf("create db dir: %w", err))
	}
	st, err := store.Open(a.cfg.AbsDBPath)
	if err != nil {
		return nil, withCode(ExitStorageError, fmt.Errorf("open history db: %w", err))
	}
	return st, nil
}

type installerDeps struct {
	installer *install.Installer
	bar       *progress.Bar
	close     func()
}

// installer wires an Installer from the loaded configuration.
func (a *app) installer(ctx context.Context, withRuntime bool, progressOut io.Writer) (*installerDeps, error) {
	hc := a.httpClient()
	f, closeCache, err := a.fetcher(ctx, hc)
	if err != nil {
		return nil, err
	}
	closers := []func(){closeCache}
	deps := &installerDeps{close: func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}}

	opts := install.Options{
		Workers:        a.cfg.Workers,
		MaxRetries:     a.cfg.MaxRetries,
		RoundDelay:     a.cfg.RoundDelay,
		AssetBaseURL:   a.cfg.AssetBaseURL,
		VerifyExisting: a.cfg.VerifyExisting,
	}
	if withRuntime {
		opts.Runtime = jre.NewResolver(hc, a.cfg.RuntimeAPIURL)
	}
	if a.cfg.History {
		st, err := a.openStore()
		if err != nil {
			deps.close()
			return nil, err
		}
		closers = append(closers, func() { _ = st.Close() })
		opts.History = st
	}
	if progressOut != nil && a.cfg.Progress {
		deps.bar = progress.New(progressOut, "downloading")
		opts.Hooks = deps.bar
	}

	deps.installer = install.New(a.source(hc), layout.New(a.cfg.AbsRootDir), f, opts)
	return deps, nil
}
