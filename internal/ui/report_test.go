package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"gamefetch/internal/download"
	"gamefetch/internal/install"
	"gamefetch/internal/store"
)

func TestWriteInstallSummary(t *testing.T) {
	e := download.NewEntry("https://files.test/libs/a.jar", "/games/libs/a.jar", "")
	for i := 0; i < 4; i++ {
		e = e.Retry()
	}
	rep := &install.Report{
		RunID:     "0b6f1c2e-9d4a-4e3b-8f7a-2c1d0e9f8a7b",
		VersionID: "1.20.1",
		Root:      "/games",
		Queued:    3,
		Download: &download.Report{
			Rounds:       4,
			Dispatched:   6,
			Succeeded:    2,
			BytesWritten: 2_000_000,
			Failed: []download.Failure{{
				Entry: e,
				Err:   &download.TransferError{Kind: download.ErrNetwork, URL: e.URL, Path: e.Path, Err: errors.New("404")},
			}},
		},
		Mismatches: []install.Mismatch{{Kind: "library", Path: "/games/libs/a.jar", Expected: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", Missing: true}},
	}
	var buf bytes.Buffer
	WriteInstallSummary(&buf, rep)
	out := buf.String()
	for _, want := range []string{"run 0b6f1c2e", "version 1.20.1", "2.0 MB written", "network_error", "missing", "aaf4c61d"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRuns(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	runs := []store.Run{{
		ID:           "0b6f1c2e-9d4a-4e3b-8f7a-2c1d0e9f8a7b",
		VersionID:    "1.20.1",
		Status:       store.StatusIncomplete,
		Succeeded:    10,
		FailedCount:  1,
		BytesWritten: 1500,
		StartedAt:    now.Add(-2 * time.Hour),
	}}
	var buf bytes.Buffer
	WriteRuns(&buf, runs, now)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", buf.String())
	}
	for _, want := range []string{"0b6f1c2e", "incomplete", "1.5 kB", "2 hours ago"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row missing %q: %q", want, lines[1])
		}
	}
}

func TestWriteRunFailures(t *testing.T) {
	var buf bytes.Buffer
	WriteRunFailures(&buf, []store.Failure{{Kind: "hash_mismatch", Attempts: 4, URL: "https://x/a", Message: "bad"}})
	if !strings.Contains(buf.String(), "hash_mismatch") || !strings.Contains(buf.String(), "https://x/a") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
