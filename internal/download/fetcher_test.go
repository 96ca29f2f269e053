package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, hash string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[hash]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (c *mapCache) Put(_ context.Context, hash string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[hash] = data
	c.puts++
	return nil
}

func countingFetcher(body string, err error) (Fetcher, *int) {
	var mu sync.Mutex
	calls := 0
	return FetcherFunc(func(ctx context.Context, url, hash string) ([]byte, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	}), &calls
}

func TestCachedFetcher_FillsAndServes(t *testing.T) {
	cache := newMapCache()
	next, calls := countingFetcher("hello", nil)
	f := CachedFetcher{Cache: cache, Next: next}

	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background(), "http://x/a", helloHash)
		if err != nil || string(body) != "hello" {
			t.Fatalf("Fetch() = %q, %v", body, err)
		}
	}
	if *calls != 1 {
		t.Fatalf("expected one upstream fetch, got %d", *calls)
	}
	if cache.puts != 1 {
		t.Fatalf("expected one cache write, got %d", cache.puts)
	}
}

func TestCachedFetcher_DoesNotCacheMismatch(t *testing.T) {
	cache := newMapCache()
	next, _ := countingFetcher("corrupted", nil)
	f := CachedFetcher{Cache: cache, Next: next}

	if _, err := f.Fetch(context.Background(), "http://x/a", helloHash); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if cache.puts != 0 {
		t.Fatal("mismatching body must not enter the cache")
	}
}

func TestCachedFetcher_IgnoresCorruptEntry(t *testing.T) {
	cache := newMapCache()
	cache.data[helloHash] = []byte("bitrot")
	next, calls := countingFetcher("hello", nil)
	f := CachedFetcher{Cache: cache, Next: next}

	body, err := f.Fetch(context.Background(), "http://x/a", helloHash)
	if err != nil || string(body) != "hello" {
		t.Fatalf("Fetch() = %q, %v", body, err)
	}
	if *calls != 1 {
		t.Fatalf("expected fallback to upstream, got %d calls", *calls)
	}
}

func TestCachedFetcher_UnhashedBypassesCache(t *testing.T) {
	cache := newMapCache()
	next, calls := countingFetcher("zip", nil)
	f := CachedFetcher{Cache: cache, Next: next}

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), "http://x/runtime.zip", ""); err != nil {
			t.Fatalf("Fetch() failed: %v", err)
		}
	}
	if *calls != 2 || cache.puts != 0 {
		t.Fatalf("expected cache bypass, calls=%d puts=%d", *calls, cache.puts)
	}
}

func TestMirrorFetcher_NoServersDelegates(t *testing.T) {
	boom := errors.New("boom")
	next, calls := countingFetcher("", boom)
	f := NewMirrorFetcher(nil, nil, next)

	if _, err := f.Fetch(context.Background(), "http://x/a", helloHash); !errors.Is(err, boom) {
		t.Fatalf("expected delegated error, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected one delegated call, got %d", *calls)
	}
}

// mirrorServer answers fetchurl requests for helloHash with body, or 404
// when body is empty. It counts requests.
func mirrorServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if body == "" || r.URL.Path != "/api/fetchurl/sha1/"+helloHash {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestMirrorFetcher_Mirrors(t *testing.T) {
	t.Setenv("FETCHURL_SERVER", "")
	tests := []struct {
		name        string
		mirrorBody  string
		originBody  string
		wantBody    string
		wantOrigin  int
		wantMirrors int32
	}{
		{name: "mirror hit", mirrorBody: "hello", originBody: "hello", wantBody: "hello", wantOrigin: 0, wantMirrors: 1},
		{name: "mirror miss", mirrorBody: "", originBody: "hello", wantBody: "hello", wantOrigin: 1, wantMirrors: 1},
		{name: "mirror serves wrong content", mirrorBody: "tampered", originBody: "hello", wantBody: "hello", wantOrigin: 1, wantMirrors: 1},
		// The mismatch surfaces in Transfer; the origin is still asked once.
		{name: "origin serves wrong content", mirrorBody: "", originBody: "tampered", wantBody: "tampered", wantOrigin: 1, wantMirrors: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, mirrorHits := mirrorServer(t, tt.mirrorBody)
			next, originCalls := countingFetcher(tt.originBody, nil)
			f := NewMirrorFetcher(srv.Client(), []string{srv.URL}, next)

			got, err := f.Fetch(context.Background(), "http://origin.test/a", helloHash)
			if err != nil {
				t.Fatalf("Fetch() failed: %v", err)
			}
			if string(got) != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if *originCalls != tt.wantOrigin {
				t.Errorf("origin calls = %d, want %d", *originCalls, tt.wantOrigin)
			}
			if n := atomic.LoadInt32(mirrorHits); n != tt.wantMirrors {
				t.Errorf("mirror hits = %d, want %d", n, tt.wantMirrors)
			}
		})
	}
}

func TestMirrorFetcher_ConfiguredServersOverrideEnv(t *testing.T) {
	t.Setenv("FETCHURL_SERVER", "http://env-mirror.invalid")
	f := NewMirrorFetcher(nil, []string{"http://a.test", "http://b.test"}, nil)
	if got := f.fetcher.Servers; len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("Servers = %v", got)
	}
}

func TestMirrorFetcher_UnhashedSkipsMirrors(t *testing.T) {
	srv, mirrorHits := mirrorServer(t, "hello")
	next, calls := countingFetcher("zip", nil)
	f := NewMirrorFetcher(srv.Client(), []string{srv.URL}, next)

	if _, err := f.Fetch(context.Background(), "http://origin.test/runtime.zip", ""); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if *calls != 1 || atomic.LoadInt32(mirrorHits) != 0 {
		t.Fatalf("expected origin only, calls=%d mirror hits=%d", *calls, atomic.LoadInt32(mirrorHits))
	}
}
