package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gamefetch/internal/logging"
)

// Transfer performs a single fetch-write-verify attempt for url into dest
// and returns the number of bytes written.
//
// An existing dest is treated as done without fetching or verifying. When
// verification fails the written file is left in place; the orchestrator
// removes it before the next attempt.
func Transfer(ctx context.Context, f Fetcher, url, dest, expectedHash string) (int64, error) {
	if _, err := os.Stat(dest); err == nil {
		return 0, nil
	}

	if expectedHash != "" && !ValidHash(expectedHash) {
		return 0, transferErr(ErrMalformedHash, url, dest, fmt.Errorf("%q", expectedHash))
	}

	body, err := f.Fetch(ctx, url, expectedHash)
	if err != nil {
		return 0, transferErr(ErrNetwork, url, dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, transferErr(ErrIO, url, dest, err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return 0, transferErr(ErrIO, url, dest, err)
	}

	if expectedHash != "" && !Verify(dest, expectedHash) {
		return int64(len(body)), transferErr(ErrHashMismatch, url, dest, nil)
	}

	logging.LogTransferComplete(url, dest, len(body))
	return int64(len(body)), nil
}
