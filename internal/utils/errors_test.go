package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	invalid := InvalidInput("detect_phishing", "No URLs provided")
	wrapped := fmt.Errorf("handler: %w", invalid)

	if KindOf(wrapped) != KindInvalidInput {
		t.Fatalf("expected invalid input kind through wrapping")
	}
	if KindOf(errors.New("boom")) != KindProcessing {
		t.Fatalf("plain errors are processing failures")
	}
	if Message(wrapped) != "No URLs provided" {
		t.Fatalf("unexpected message %q", Message(wrapped))
	}
}

func TestAppErrorMessageIncludesCause(t *testing.T) {
	err := NewAppError("analyze_logs", "scoring failed", errors.New("feature width 4, want 5"))
	if got := Message(err); got != "scoring failed: feature width 4, want 5" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, errors.Unwrap(err)) {
		t.Fatalf("expected unwrap to expose cause")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "verbose": "INFO"}
	for in, want := range cases {
		if got := ParseLevel(in).String(); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
