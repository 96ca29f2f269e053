package download

import "fmt"

// Entry is one file to fetch. Entries are values: a retried entry is a new
// Entry produced by Retry, never a mutated one.
type Entry struct {
	URL          string `json:"url"`
	Path         string `json:"path"`
	Attempts     int    `json:"attempts"`
	ExpectedHash string `json:"expected_hash,omitempty"` // lowercase hex SHA-1; empty skips verification
}

// NewEntry returns an entry that has not been attempted yet.
func NewEntry(url, path, expectedHash string) Entry {
	return Entry{URL: url, Path: path, ExpectedHash: expectedHash}
}

// Equal reports whether e and o agree on every field.
func (e Entry) Equal(o Entry) bool {
	return e == o
}

// SameTarget reports whether e and o describe the same transfer, ignoring
// the attempt count.
func (e Entry) SameTarget(o Entry) bool {
	return e.URL == o.URL && e.Path == o.Path
}

// Retry returns a copy of e with one more recorded attempt.
func (e Entry) Retry() Entry {
	e.Attempts++
	return e
}

func (e Entry) String() string {
	return fmt.Sprintf("%s -> %s (attempts=%d)", e.URL, e.Path, e.Attempts)
}
