package usecase

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateContentRespectsRuneBoundaries(t *testing.T) {
	// "°" is two bytes; place it so the budget falls inside it.
	content := "12°C"
	got := truncateContent(content, 3)

	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got != "12" {
		t.Fatalf("truncateContent = %q, want %q", got, "12")
	}
}

func TestTruncateContentKeepsShortContentWhole(t *testing.T) {
	if got := truncateContent("  65 ksi min  ", 500); got != "65 ksi min" {
		t.Fatalf("truncateContent = %q", got)
	}
}
