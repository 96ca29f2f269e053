package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob/memblob"

	"gamefetch/internal/download"
)

const helloHash = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	if _, err := s.Get(ctx, helloHash); !errors.Is(err, download.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if err := s.Put(ctx, helloHash, []byte("hello")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	got, err := s.Get(ctx, helloHash)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if ok, err := s.Has(ctx, helloHash); err != nil || !ok {
		t.Fatalf("Has() = %v, %v", ok, err)
	}
}

func TestStore_WrapsOpenedBucket(t *testing.T) {
	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	s := New(b)
	t.Cleanup(func() { s.Close() })

	if err := b.WriteAll(ctx, "objects/aa/"+helloHash, []byte("hello"), nil); err != nil {
		t.Fatalf("WriteAll() failed: %v", err)
	}
	got, err := s.Get(ctx, helloHash)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if ok, err := s.Has(ctx, "bbf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"); err != nil || ok {
		t.Fatalf("Has() on absent object = %v, %v", ok, err)
	}
}

func TestStore_RejectsMalformedKey(t *testing.T) {
	s := openMem(t)
	if err := s.Put(context.Background(), "../etc", []byte("x")); !errors.Is(err, download.ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestStore_FileBucketLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), "file://"+filepath.ToSlash(dir))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.Put(context.Background(), helloHash, []byte("hello")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "objects", "aa", helloHash)); err != nil {
		t.Fatalf("expected content-addressed object on disk: %v", err)
	}
}

func TestStore_BacksCachedFetcher(t *testing.T) {
	s := openMem(t)
	calls := 0
	next := download.FetcherFunc(func(ctx context.Context, url, hash string) ([]byte, error) {
		calls++
		return []byte("hello"), nil
	})
	f := download.CachedFetcher{Cache: s, Next: next}

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), "http://x/a", helloHash); err != nil {
			t.Fatalf("Fetch() failed: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one upstream fetch, got %d", calls)
	}
}
