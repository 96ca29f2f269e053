package download

import (
	"errors"
	"fmt"

	"gamefetch/internal/layout"
)

var (
	// ErrNetwork indicates the request, status or body read failed
	ErrNetwork = errors.New("network_error")

	// ErrIO indicates a local directory or file could not be written
	ErrIO = errors.New("io_error")

	// ErrHashMismatch indicates the written file does not match its expected digest
	ErrHashMismatch = errors.New("hash_mismatch")

	// ErrMalformedHash indicates an expected digest that can never match; not retried
	ErrMalformedHash = layout.ErrMalformedHash
)

// TransferError describes a failed transfer attempt. It matches its Kind and
// the underlying cause through errors.Is.
type TransferError struct {
	Kind error
	URL  string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s -> %s", e.Kind, e.URL, e.Path)
	}
	return fmt.Sprintf("%v: %s -> %s: %v", e.Kind, e.URL, e.Path, e.Err)
}

func (e *TransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func transferErr(kind error, url, path string, err error) error {
	return &TransferError{Kind: kind, URL: url, Path: path, Err: err}
}

// Retryable reports whether a failed transfer may succeed on another attempt.
// Malformed hashes are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMalformedHash)
}

// Kind returns the sentinel classifying err, or nil when err is not a
// transfer failure.
func Kind(err error) error {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	for _, k := range []error{ErrMalformedHash, ErrHashMismatch, ErrIO, ErrNetwork} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
