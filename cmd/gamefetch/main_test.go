package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gamefetch/internal/download"
	"gamefetch/internal/manifest"
	"gamefetch/internal/store"
)

// upstream serves a one-version manifest tree. Paths listed in missing
// answer 404.
type upstream struct {
	srv     *httptest.Server
	mu      sync.Mutex
	files   map[string][]byte
	missing map[string]bool
	served  func(path string)
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{files: map[string][]byte{}, missing: map[string]bool{}}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		body, ok := u.files[r.URL.Path]
		gone := u.missing[r.URL.Path]
		served := u.served
		u.mu.Unlock()
		if served != nil {
			served(r.URL.Path)
		}
		if !ok || gone {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.srv.Close)

	base := u.srv.URL
	asset := []byte("icon-bytes")
	assetHash := download.HashBytes(asset)
	u.files["/objects/"+assetHash[:2]+"/"+assetHash] = asset

	index := []byte(fmt.Sprintf(`{"objects":{"icons/icon.png":{"hash":%q,"size":%d}}}`, assetHash, len(asset)))
	u.files["/indexes/1.json"] = index

	lib := []byte("library-bytes")
	u.files["/libs/core.jar"] = lib
	client := []byte("client-bytes")
	u.files["/client.jar"] = client

	version := fmt.Sprintf(`{
  "id": "1.0",
  "type": "release",
  "assetIndex": {"id": "1", "url": %q, "sha1": %q},
  "downloads": {"client": {"url": %q, "sha1": %q}},
  "libraries": [{"name": "core", "downloads": {"artifact": {"url": %q, "sha1": %q}}}]
}`, base+"/indexes/1.json", download.HashBytes(index),
		base+"/client.jar", download.HashBytes(client),
		base+"/libs/core.jar", download.HashBytes(lib))
	u.files["/v/1.0.json"] = []byte(version)

	u.files["/versions.json"] = []byte(fmt.Sprintf(`{
  "latest": {"release": "1.0", "snapshot": "1.1-pre"},
  "versions": [
    {"id": "1.1-pre", "type": "snapshot", "url": %q},
    {"id": "1.0", "type": "release", "url": %q}
  ]
}`, base+"/v/1.1-pre.json", base+"/v/1.0.json"))
	return u
}

func (u *upstream) drop(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.missing[path] = true
}

type cli struct {
	u    *upstream
	root string
	db   string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	return &cli{u: newUpstream(t), root: filepath.Join(dir, "game"), db: filepath.Join(dir, "history.db")}
}

func (c *cli) run(args ...string) (int, string, string) {
	return c.runContext(context.Background(), args...)
}

func (c *cli) runContext(ctx context.Context, args ...string) (int, string, string) {
	common := []string{
		"--root", c.root,
		"--db", c.db,
		"--manifest-url", c.u.srv.URL + "/versions.json",
		"--asset-base-url", c.u.srv.URL + "/objects",
		"--max-retries", "1",
		"--no-progress",
		"--log-level", "error",
	}
	var stdout, stderr bytes.Buffer
	code := runContext(ctx, append(args, common...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestInstall_EndToEnd(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.run("install", "1.0", "--history", "--no-runtime")
	if code != ExitSuccess {
		t.Fatalf("install exit %d\nstdout: %s\nstderr: %s", code, out, errOut)
	}
	if !strings.Contains(out, "version 1.0") {
		t.Errorf("summary missing version: %s", out)
	}
	for _, rel := range []string{"client.jar", "libs/core.jar", "assets/indexes/1.json"} {
		if _, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s installed: %v", rel, err)
		}
	}

	code, out, _ = c.run("verify", "latest")
	if code != ExitSuccess || !strings.Contains(out, "all files verified") {
		t.Fatalf("verify exit %d: %s", code, out)
	}

	code, out, _ = c.run("history", "--json")
	if code != ExitSuccess {
		t.Fatalf("history exit %d", code)
	}
	var runs []store.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != store.StatusCompleted || runs[0].VersionID != "1.0" {
		t.Fatalf("unexpected history: %+v", runs)
	}

	code, out, _ = c.run("history", "show", runs[0].ID[:8])
	if code != ExitSuccess || !strings.Contains(out, runs[0].ID) {
		t.Fatalf("history show exit %d: %s", code, out)
	}
}

func TestInstall_IncompleteExitCode(t *testing.T) {
	c := newCLI(t)
	c.u.drop("/libs/core.jar")

	code, out, _ := c.run("install", "--json", "--no-runtime")
	if code != ExitIncomplete {
		t.Fatalf("expected exit %d, got %d\n%s", ExitIncomplete, code, out)
	}
	var rep struct {
		Download struct {
			Succeeded int `json:"succeeded"`
		} `json:"download"`
		Mismatches []struct {
			Kind    string `json:"kind"`
			Missing bool   `json:"missing"`
		} `json:"mismatches"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if rep.Download.Succeeded != 3 {
		t.Errorf("expected 3 successful transfers, got %d", rep.Download.Succeeded)
	}
	if len(rep.Mismatches) != 1 || rep.Mismatches[0].Kind != "library" || !rep.Mismatches[0].Missing {
		t.Errorf("unexpected mismatches: %+v", rep.Mismatches)
	}
}

func TestInstall_InterruptedPrintsPartialReport(t *testing.T) {
	c := newCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.u.mu.Lock()
	c.u.served = func(path string) {
		if path == "/libs/core.jar" {
			cancel()
		}
	}
	c.u.mu.Unlock()

	code, out, errOut := c.runContext(ctx, "install", "--json", "--no-runtime")
	if code != ExitInterrupted {
		t.Fatalf("expected exit %d, got %d\nstderr: %s", ExitInterrupted, code, errOut)
	}
	var rep struct {
		RunID    string `json:"run_id"`
		Download *struct {
			Rounds int `json:"rounds"`
		} `json:"download"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode partial report: %v\n%s", err, out)
	}
	if rep.RunID == "" || rep.Download == nil || rep.Download.Rounds != 1 {
		t.Fatalf("unexpected partial report: %s", out)
	}
}

func TestRun_BareRootPrintsHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != ExitSuccess {
		t.Fatalf("expected exit %d, got %d: %s", ExitSuccess, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Available Commands") {
		t.Fatalf("expected usage on stdout: %s", stdout.String())
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	c := newCLI(t)
	if code, out, errOut := c.run("install", "--no-runtime"); code != ExitSuccess {
		t.Fatalf("install exit %d\n%s\n%s", code, out, errOut)
	}
	if err := os.WriteFile(filepath.Join(c.root, "client.jar"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, _ := c.run("verify")
	if code != ExitAuditFailed {
		t.Fatalf("expected exit %d, got %d", ExitAuditFailed, code)
	}
	if !strings.Contains(out, "client") || !strings.Contains(out, "corrupt") {
		t.Errorf("mismatch table missing client entry: %s", out)
	}
}

func TestInstall_UnknownVersion(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("install", "9.9", "--no-runtime")
	if code != ExitManifestError {
		t.Fatalf("expected exit %d, got %d: %s", ExitManifestError, code, errOut)
	}
}

func TestVersions_FilterAndLimit(t *testing.T) {
	c := newCLI(t)
	code, out, _ := c.run("versions", "--type", "release", "--json")
	if code != ExitSuccess {
		t.Fatalf("versions exit %d", code)
	}
	var refs []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &refs); err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ID != "1.0" {
		t.Fatalf("unexpected versions: %+v", refs)
	}

	code, out, _ = c.run("versions", "-n", "1")
	if code != ExitSuccess || !strings.Contains(out, "1.1-pre") || strings.Contains(out, "\n1.0 ") {
		t.Fatalf("versions table exit %d:\n%s", code, out)
	}
}

func TestRun_InvalidArguments(t *testing.T) {
	c := newCLI(t)
	for _, args := range [][]string{
		{"install", "--bogus"},
		{"install", "a", "b"},
		{"frobnicate"},
		{"history", "frobnicate"},
		{"versions", "extra"},
		{"history", "show"},
		{"install", "--workers", "many"},
	} {
		if code, _, _ := c.run(args...); code != ExitInvalidArgs {
			t.Errorf("%v: expected exit %d, got %d", args, ExitInvalidArgs, code)
		}
	}
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	c := newCLI(t)
	if code, _, _ := c.run("history", "show", "nope"); code != ExitInvalidArgs {
		t.Fatalf("expected exit %d, got %d", ExitInvalidArgs, code)
	}
}

func TestFilterVersions(t *testing.T) {
	refs := []manifest.VersionRef{
		{ID: "1.2-pre", Type: "snapshot"},
		{ID: "1.1", Type: "release"},
		{ID: "1.0", Type: "release"},
	}
	tests := []struct {
		kind  string
		limit int
		want  []string
	}{
		{"", 0, []string{"1.2-pre", "1.1", "1.0"}},
		{"release", 0, []string{"1.1", "1.0"}},
		{"release", 1, []string{"1.1"}},
		{"old_beta", 0, nil},
	}
	for _, tt := range tests {
		got := filterVersions(refs, tt.kind, tt.limit)
		if len(got) != len(tt.want) {
			t.Errorf("filterVersions(%q, %d) = %v, want %v", tt.kind, tt.limit, got, tt.want)
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("filterVersions(%q, %d)[%d] = %s, want %s", tt.kind, tt.limit, i, got[i].ID, tt.want[i])
			}
		}
	}
}
