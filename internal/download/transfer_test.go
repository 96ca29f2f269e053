package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"gamefetch/internal/httpclient"
)

// newFileServer serves fixed bodies by path and counts requests.
func newFileServer(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func directFetcher() Fetcher {
	return DirectFetcher{Client: httpclient.New(httpclient.DefaultOptions())}
}

func TestTransfer_Success(t *testing.T) {
	srv, _ := newFileServer(t, map[string]string{"/libs/a.jar": "hello"})
	dest := filepath.Join(t.TempDir(), "nested", "dir", "a.jar")

	n, err := Transfer(context.Background(), directFetcher(), srv.URL+"/libs/a.jar", dest, helloHash)
	if err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}
	if !Verify(dest, helloHash) {
		t.Fatal("expected destination to verify")
	}
}

func TestTransfer_ExistingSkipsFetch(t *testing.T) {
	srv, hits := newFileServer(t, map[string]string{"/a": "hello"})
	dest := filepath.Join(t.TempDir(), "a")
	writeFile(t, dest, "stale content")

	n, err := Transfer(context.Background(), directFetcher(), srv.URL+"/a", dest, helloHash)
	if err != nil || n != 0 {
		t.Fatalf("expected skip, got n=%d err=%v", n, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestTransfer_MalformedHashNoFetch(t *testing.T) {
	srv, hits := newFileServer(t, map[string]string{"/a": "hello"})
	dest := filepath.Join(t.TempDir(), "a")

	_, err := Transfer(context.Background(), directFetcher(), srv.URL+"/a", dest, "xyz")
	if !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
	if Retryable(err) {
		t.Fatal("malformed hash must not be retryable")
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestTransfer_NetworkError(t *testing.T) {
	srv, _ := newFileServer(t, nil)
	dest := filepath.Join(t.TempDir(), "a")

	_, err := Transfer(context.Background(), directFetcher(), srv.URL+"/missing", dest, helloHash)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !errors.Is(err, httpclient.ErrNotFound) {
		t.Fatalf("expected underlying ErrNotFound, got %v", err)
	}
	var te *TransferError
	if !errors.As(err, &te) || te.Path != dest {
		t.Fatalf("expected TransferError for %s, got %v", dest, err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("no file should be written on network failure")
	}
}

func TestTransfer_HashMismatchLeavesFile(t *testing.T) {
	srv, _ := newFileServer(t, map[string]string{"/a": "corrupted"})
	dest := filepath.Join(t.TempDir(), "a")

	_, err := Transfer(context.Background(), directFetcher(), srv.URL+"/a", dest, helloHash)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if !Retryable(err) {
		t.Fatal("hash mismatch should be retryable")
	}
	if _, statErr := os.Stat(dest); statErr != nil {
		t.Fatalf("mismatching file should stay on disk: %v", statErr)
	}
}

func TestTransfer_IOError(t *testing.T) {
	srv, _ := newFileServer(t, map[string]string{"/a": "hello"})
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "file, not dir")

	_, err := Transfer(context.Background(), directFetcher(), srv.URL+"/a", filepath.Join(blocker, "a"), helloHash)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestTransfer_NoHashSkipsVerification(t *testing.T) {
	srv, _ := newFileServer(t, map[string]string{"/runtime.zip": "anything"})
	dest := filepath.Join(t.TempDir(), "runtime.zip")

	if _, err := Transfer(context.Background(), directFetcher(), srv.URL+"/runtime.zip", dest, ""); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
}

func TestKind(t *testing.T) {
	err := transferErr(ErrHashMismatch, "u", "p", nil)
	if Kind(err) != ErrHashMismatch {
		t.Fatalf("Kind() = %v", Kind(err))
	}
	if Kind(errors.New("other")) != nil {
		t.Fatal("expected nil kind for foreign errors")
	}
}
