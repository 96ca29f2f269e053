package ui

import (
	"errors"
	"fmt"

	"github.com/ktr0731/go-fuzzyfinder"

	"gamefetch/internal/manifest"
)

// ErrNoSelection is returned when the picker is aborted.
var ErrNoSelection = errors.New("no_selection")

// find is replaced in tests; the real finder needs a terminal.
var find = fuzzyfinder.Find

// PickVersion lets the user choose a version interactively. query
// pre-fills the search.
func PickVersion(versions []manifest.VersionRef, query string) (string, error) {
	if len(versions) == 0 {
		return "", errors.New("no versions to pick from")
	}
	opts := []fuzzyfinder.Option{
		fuzzyfinder.WithPreviewWindow(func(i, width, height int) string {
			if i == -1 {
				return ""
			}
			v := versions[i]
			return fmt.Sprintf("ID:       %s\nType:     %s\nReleased: %s", v.ID, v.Type, v.ReleaseTime)
		}),
	}
	if query != "" {
		opts = append(opts, fuzzyfinder.WithQuery(query))
	}
	idx, err := find(versions, func(i int) string {
		return versions[i].ID + "  " + versions[i].Type
	}, opts...)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return "", ErrNoSelection
		}
		return "", fmt.Errorf("version picker: %w", err)
	}
	return versions[idx].ID, nil
}
