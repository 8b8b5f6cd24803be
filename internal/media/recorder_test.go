package media

import (
	"context"
	"errors"
	"testing"
)

func TestViewURLSubstitutesProjectAndView(t *testing.T) {
	got, err := ViewURL("http://localhost:3000/preview/%s?mode=capture", "p 1", "north")
	if err != nil {
		t.Fatalf("ViewURL: %v", err)
	}
	want := "http://localhost:3000/preview/p%201?mode=capture&view=north"
	if got != want {
		t.Fatalf("ViewURL = %q, want %q", got, want)
	}
}

func TestViewURLWithoutPlaceholder(t *testing.T) {
	got, err := ViewURL("http://localhost:3000/preview", "p1", "west")
	if err != nil {
		t.Fatalf("ViewURL: %v", err)
	}
	if got != "http://localhost:3000/preview?view=west" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestCaptureDisabledWithoutPageURL(t *testing.T) {
	recorder := NewChromeRecorder("", "", 0, nil)
	if _, err := recorder.Capture(context.Background(), "p1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestViewsCoverPreviewAndCardinals(t *testing.T) {
	if len(Views) != 5 || Views[0] != "preview" {
		t.Fatalf("unexpected views %v", Views)
	}
}
