package download

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile streams path through SHA-1 and returns the lowercase hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the lowercase hex SHA-1 digest of b.
func HashBytes(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the file at path hashes to expected. The comparison
// is case-sensitive against the lowercase digest; a missing or unreadable
// file never verifies.
func Verify(path, expected string) bool {
	got, err := HashFile(path)
	if err != nil {
		return false
	}
	return got == expected
}

// ValidHash reports whether s is a lowercase 40-character hex SHA-1 digest.
func ValidHash(s string) bool {
	if len(s) != sha1.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
