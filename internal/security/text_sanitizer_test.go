package security

import "testing"

// TestSanitizeDisplayText はマークアップ除去を検証する。
func TestSanitizeDisplayText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"Alice", "Alice"},
		{"<b>Alice</b>", "Alice"},
		{"<script>alert(1)</script>Bob", "Bob"},
		{`<a href="https://evil.example">link</a>`, "link"},
		{"  spaced  ", "spaced"},
		{"", ""},
		{"<img src=x onerror=alert(1)>", ""},
	}

	for _, tt := range tests {
		if got := sanitizer.SanitizeDisplayText(tt.input); got != tt.want {
			t.Errorf("SanitizeDisplayText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestSanitizeDisplayText_PreservesPlainUnicode は通常のユニコード文字が保持されることを検証する。
func TestSanitizeDisplayText_PreservesPlainUnicode(t *testing.T) {
	sanitizer := NewTextSanitizer()

	input := "山田太郎 💎"
	if got := sanitizer.SanitizeDisplayText(input); got != input {
		t.Errorf("SanitizeDisplayText(%q) = %q, want unchanged", input, got)
	}
}
