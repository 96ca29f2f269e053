package store

import "errors"

var (
	// ErrEmptyVersion indicates a version ID parameter is missing or empty
	ErrEmptyVersion = errors.New("empty_version")

	// ErrEmptyRunID indicates a run ID parameter is missing or empty
	ErrEmptyRunID = errors.New("empty_run_id")

	// ErrRunNotFound indicates no run exists with the given ID
	ErrRunNotFound = errors.New("run_not_found")
)
