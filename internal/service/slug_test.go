package service

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Trim Me  ", "trim-me"},
		{"Multiple   Spaces\tAnd\nNewlines", "multiple-spaces-and-newlines"},
		{"CamelCase Title", "camelcase-title"},
		{"Special!@#Chars%^&Here", "specialcharshere"},
		{"keep_underscores-and-hyphens", "keep_underscores-and-hyphens"},
		{"a - b - c", "a-b-c"},
		{"--edges--", "edges"},
		{"123 numbers 456", "123-numbers-456"},
		{"!!!", "snippet"},
		{"", "snippet"},
		{"   ", "snippet"},
		{"日本語のみ", "snippet"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
