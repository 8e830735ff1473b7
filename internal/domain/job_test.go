package domain

import (
	"strings"
	"testing"
)

func TestResolveContentTypeDeclaredWins(t *testing.T) {
	got := ResolveContentType("video/webm", "clip.mp4")
	if got != "video/webm" {
		t.Fatalf("expected declared type to win, got %s", got)
	}
}

func TestResolveContentTypeIgnoresOctetStream(t *testing.T) {
	got := ResolveContentType("application/octet-stream", "clip.mp4")
	if !strings.HasPrefix(got, "video/mp4") {
		t.Fatalf("expected extension sniff for octet-stream, got %s", got)
	}
}

func TestResolveContentTypeFallsBackToDefault(t *testing.T) {
	if got := ResolveContentType("", ""); got != DefaultContentType {
		t.Fatalf("expected %s fallback, got %s", DefaultContentType, got)
	}
	if got := ResolveContentType("", "mystery.zzz9"); got != DefaultContentType {
		t.Fatalf("expected %s for unknown extension, got %s", DefaultContentType, got)
	}
}

func TestSanitizeInputName(t *testing.T) {
	if got := SanitizeInputName(""); got != DefaultInputName {
		t.Fatalf("expected default input name, got %s", got)
	}
	if got := SanitizeInputName("../../etc/passwd"); got != "passwd" {
		t.Fatalf("expected path components stripped, got %s", got)
	}
	if got := SanitizeInputName("clip.mp4"); got != "clip.mp4" {
		t.Fatalf("expected filename preserved, got %s", got)
	}
}
