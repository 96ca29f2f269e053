package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/ktr0731/go-fuzzyfinder"

	"gamefetch/internal/manifest"
)

func TestPickVersion(t *testing.T) {
	versions := []manifest.VersionRef{{ID: "1.20.1", Type: "release"}, {ID: "23w45a", Type: "snapshot"}}
	orig := find
	t.Cleanup(func() { find = orig })

	var items []string
	find = func(slice any, itemFunc func(int) string, _ ...fuzzyfinder.Option) (int, error) {
		for i := range versions {
			items = append(items, itemFunc(i))
		}
		return 1, nil
	}
	id, err := PickVersion(versions, "")
	if err != nil || id != "23w45a" {
		t.Fatalf("PickVersion() = %q, %v", id, err)
	}
	if len(items) != 2 || !strings.Contains(items[1], "snapshot") {
		t.Errorf("unexpected item labels %q", items)
	}

	find = func(any, func(int) string, ...fuzzyfinder.Option) (int, error) {
		return 0, fuzzyfinder.ErrAbort
	}
	if _, err := PickVersion(versions, "1.20"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}

	if _, err := PickVersion(nil, ""); err == nil {
		t.Fatal("expected error for empty version list")
	}
}
