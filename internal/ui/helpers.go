package ui

import "strings"

const shortIDLen = 8

// ShortID abbreviates a run ID or digest for tables. UUIDs are cut at their
// first group; anything else keeps its first eight characters.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 && i <= shortIDLen {
		return id[:i]
	}
	if r := []rune(id); len(r) > shortIDLen {
		return string(r[:shortIDLen])
	}
	return id
}
