package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/lucasew/fetchurl"

	"gamefetch/internal/logging"
)

// Fetcher retrieves the full body of url in a single attempt. expectedHash
// may be empty; implementations that address content by hash use it as a key.
type Fetcher interface {
	Fetch(ctx context.Context, url, expectedHash string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, url, expectedHash string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url, expectedHash string) ([]byte, error) {
	return f(ctx, url, expectedHash)
}

// Getter is satisfied by httpclient.Client.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// DirectFetcher fetches straight from the origin URL.
type DirectFetcher struct {
	Client Getter
}

func (d DirectFetcher) Fetch(ctx context.Context, url, _ string) ([]byte, error) {
	return d.Client.Get(ctx, url)
}

// MirrorFetcher resolves hash-addressed content through fetchurl mirror
// servers before falling back to Next. Entries without a hash go to Next
// directly. The origin is contacted at most once per Fetch: fetchurl only
// queries the mirrors and Next handles the origin.
type MirrorFetcher struct {
	fetcher *fetchurl.Fetcher
	next    Fetcher
}

// NewMirrorFetcher returns a MirrorFetcher using client for every request.
// servers replaces any FETCHURL_SERVER setting. With no servers configured it
// behaves like next.
func NewMirrorFetcher(client *http.Client, servers []string, next Fetcher) *MirrorFetcher {
	m := &MirrorFetcher{next: next}
	if len(servers) > 0 {
		m.fetcher = fetchurl.NewFetcher(client)
		m.fetcher.Servers = append([]string(nil), servers...)
	}
	return m
}

func (m *MirrorFetcher) Fetch(ctx context.Context, url, expectedHash string) ([]byte, error) {
	if m.fetcher == nil || !ValidHash(expectedHash) {
		return m.next.Fetch(ctx, url, expectedHash)
	}

	var buf bytes.Buffer
	err := m.fetcher.Fetch(ctx, fetchurl.FetchOptions{
		Algo: "sha1",
		Hash: expectedHash,
		Out:  &buf,
	})
	if err == nil {
		return buf.Bytes(), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logging.With(ctx).Debug("mirror fetch failed, falling back",
		"event", "mirror_fallback",
		"url", logging.RedactURL(url),
		"error", err)
	return m.next.Fetch(ctx, url, expectedHash)
}

// Cache is a content-addressed object store keyed by hex digest.
type Cache interface {
	Get(ctx context.Context, hash string) ([]byte, error)
	Put(ctx context.Context, hash string, data []byte) error
}

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache_miss")

// CachedFetcher serves hashed entries from a shared cache and fills the
// cache with bodies that match their hash.
type CachedFetcher struct {
	Cache Cache
	Next  Fetcher
}

func (c CachedFetcher) Fetch(ctx context.Context, url, expectedHash string) ([]byte, error) {
	if c.Cache == nil || !ValidHash(expectedHash) {
		return c.Next.Fetch(ctx, url, expectedHash)
	}

	data, err := c.Cache.Get(ctx, expectedHash)
	switch {
	case err == nil && HashBytes(data) == expectedHash:
		logging.With(ctx).Debug("cache hit", "event", "cache_hit", "hash", expectedHash)
		return data, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		logging.With(ctx).Warn("cache read failed", "event", "cache_error", "hash", expectedHash, "error", err)
	}

	body, err := c.Next.Fetch(ctx, url, expectedHash)
	if err != nil {
		return nil, err
	}
	if HashBytes(body) == expectedHash {
		if perr := c.Cache.Put(ctx, expectedHash, body); perr != nil {
			logging.With(ctx).Warn("cache write failed", "event", "cache_error", "hash", expectedHash, "error", perr)
		}
	}
	return body, nil
}
