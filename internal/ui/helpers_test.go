package ui

import "testing"

func TestShortID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"a", "a"},
		{"abcdefgh", "abcdefgh"},
		{"abcdefghi", "abcdefgh"},
		{"0b6f1c2e-9d4a-4e3b-8f7a-2c1d0e9f8a7b", "0b6f1c2e"},
		{"aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", "aaf4c61d"},
		{"1.20-pre-release", "1.20"},
		{"verylongname-x", "verylong"},
		{"αβγδεζηθι", "αβγδεζηθ"},
	}

	for _, test := range tests {
		result := ShortID(test.input)
		if result != test.expected {
			t.Errorf("ShortID(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"short", TruncateWithEllipsis("abc", 5), "abc"},
		{"cut", TruncateWithEllipsis("abcdef", 3), "abc…"},
		{"zero", TruncateWithEllipsis("abc", 0), ""},
		{"left short", TruncateLeft("libs/a.jar", 20), "libs/a.jar"},
		{"left cut", TruncateLeft("/root/libs/a.jar", 5), "…a.jar"},
		{"left runes", TruncateLeft("日本語文字列", 2), "…字列"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
