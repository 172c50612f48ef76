package main

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Moby Dick", "moby-dick"},
		{"  The Great Gatsby  ", "the-great-gatsby"},
		{"Book: Volume 2!", "book-volume-2"},
		{"---", "untitled"},
		{"", "untitled"},
		{"über cool", "ber-cool"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
