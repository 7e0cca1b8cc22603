package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Vetacher/zoom-translator/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSynthesis, "synthesize", "segment 4", "tts rejected request", base)
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	for _, want := range []string{"synthesize", "segment 4", "tts rejected request", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "translate", "", "", nil)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected default ErrExternalService marker, got %v", err)
	}
}

func TestStageFatal(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"transcription", services.Wrap(services.ErrTranscription, "transcribe", "session", "", nil), true},
		{"artifact", services.Wrap(services.ErrArtifactNotFound, "translate", "open input", "", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "", "missing key", nil), true},
		{"content filtered", services.Wrap(services.ErrContentFiltered, "translate", "segment", "", nil), false},
		{"synthesis", services.Wrap(services.ErrSynthesis, "synthesize", "segment", "", nil), false},
		{"review parse", services.Wrap(services.ErrReviewParse, "review", "batch 2", "", nil), false},
		{"plain", errors.New("other"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.StageFatal(tc.err); got != tc.fatal {
				t.Fatalf("StageFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
			}
		})
	}
}
