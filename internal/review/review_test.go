package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
)

type stubCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *stubCompleter) Complete(_ context.Context, _, userPrompt string) (string, error) {
	s.prompts = append(s.prompts, userPrompt)
	call := s.calls
	s.calls++
	if call < len(s.errs) && s.errs[call] != nil {
		return "", s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return "[]", nil
}

func instantSleeper(context.Context, time.Duration) error { return nil }

func writeTranslation(t *testing.T, segments []segment.TranslatedSegment) string {
	t.Helper()
	artifact := segment.TranslationArtifact{
		SchemaVersion:  segment.SchemaVersion,
		AudioFile:      "meeting_audio.wav",
		SourceLanguage: "ru-RU",
		TargetLanguage: "en-US",
		TotalSegments:  len(segments),
		Speakers:       map[string]segment.Gender{"Guest-1": segment.GenderFemale},
		Segments:       segments,
	}
	path := filepath.Join(t.TempDir(), "meeting_translated.json")
	if err := segment.Save(path, artifact); err != nil {
		t.Fatalf("save translation: %v", err)
	}
	return path
}

func okSegments(n int) []segment.TranslatedSegment {
	segments := make([]segment.TranslatedSegment, 0, n)
	for i := 1; i <= n; i++ {
		segments = append(segments, segment.TranslatedSegment{
			ID:                i,
			Speaker:           "Guest-1",
			StartMS:           int64(i) * 1000,
			EndMS:             int64(i)*1000 + 900,
			DurationMS:        900,
			Original:          fmt.Sprintf("оригинал %d", i),
			Translation:       fmt.Sprintf("translation %d", i),
			TranslationStatus: segment.StatusOK,
		})
	}
	return segments
}

func TestRunAppliesFixes(t *testing.T) {
	path := writeTranslation(t, okSegments(3))
	completer := &stubCompleter{responses: []string{
		`[{"id": 2, "original_fixed": "исправленный оригинал", "translation_fixed": "fixed translation"},
		  {"id": 3, "translation_fixed": "only translation fixed"}]`,
	}}
	stage := New(completer, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outPath != segment.ReviewedPath(path) {
		t.Errorf("unexpected artifact path %q", outPath)
	}
	if !strings.Contains(completer.prompts[0], "speaker: Guest-1") {
		t.Errorf("speaker missing from batch prompt:\n%s", completer.prompts[0])
	}
	if !strings.Contains(completer.prompts[0], "time: 2.0s") {
		t.Errorf("segment start time missing from batch prompt:\n%s", completer.prompts[0])
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	if !artifact.Reviewed {
		t.Error("reviewed flag must be set")
	}
	first := artifact.Segments[0]
	if first.OriginalChanged || first.TranslationChanged {
		t.Errorf("untouched segment must have no change flags: %+v", first)
	}
	second := artifact.Segments[1]
	if second.Original != "исправленный оригинал" || !second.OriginalChanged {
		t.Errorf("original fix not applied: %+v", second)
	}
	if second.Translation != "fixed translation" || !second.TranslationChanged {
		t.Errorf("translation fix not applied: %+v", second)
	}
	third := artifact.Segments[2]
	if third.OriginalChanged || third.Translation != "only translation fixed" || !third.TranslationChanged {
		t.Errorf("partial fix misapplied: %+v", third)
	}
}

func TestRunBatchesSegments(t *testing.T) {
	path := writeTranslation(t, okSegments(25))
	completer := &stubCompleter{}
	var pauses int
	sleeper := func(context.Context, time.Duration) error {
		pauses++
		return nil
	}
	stage := New(completer, WithSleeper(sleeper), WithBatchDelay(100*time.Millisecond))

	if _, err := stage.Run(context.Background(), path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 batches of at most %d, got %d calls", DefaultBatchSize, completer.calls)
	}
	if pauses != 2 {
		t.Errorf("expected a pause between batches, got %d", pauses)
	}
	if !strings.Contains(completer.prompts[0], "Segment 1:") || strings.Contains(completer.prompts[0], "Segment 11:") {
		t.Errorf("first batch has wrong window:\n%s", completer.prompts[0])
	}
	if !strings.Contains(completer.prompts[2], "Segment 21:") || !strings.Contains(completer.prompts[2], "Segment 25:") {
		t.Errorf("last batch has wrong window:\n%s", completer.prompts[2])
	}
}

func TestRunSkipsSentinelSegments(t *testing.T) {
	segments := okSegments(2)
	segments = append(segments, segment.TranslatedSegment{
		ID:                3,
		Speaker:           "Guest-1",
		Original:          "фильтрованный",
		Translation:       segment.FilteredSentinelPrefix + "фильтрованный",
		TranslationStatus: segment.StatusContentFiltered,
	})
	path := writeTranslation(t, segments)
	completer := &stubCompleter{}
	stage := New(completer, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(completer.prompts[0], "Segment 3:") {
		t.Errorf("sentinel segment must not reach the reviewer:\n%s", completer.prompts[0])
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	got := artifact.Segments[2]
	if got.Translation != segment.FilteredSentinelPrefix+"фильтрованный" || got.TranslationStatus != segment.StatusContentFiltered {
		t.Errorf("sentinel segment must pass through untouched: %+v", got)
	}
}

func TestRunBatchFailSoft(t *testing.T) {
	path := writeTranslation(t, okSegments(20))
	completer := &stubCompleter{
		errs:      []error{errors.New("http 500")},
		responses: []string{"", `[{"id": 11, "translation_fixed": "fixed"}]`},
	}
	stage := New(completer, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run must not fail when one batch fails: %v", err)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	for _, seg := range artifact.Segments[:10] {
		if seg.OriginalChanged || seg.TranslationChanged {
			t.Errorf("failed batch must pass through untouched: %+v", seg)
		}
	}
	if artifact.Segments[10].Translation != "fixed" {
		t.Errorf("second batch fix missing: %+v", artifact.Segments[10])
	}
	if !artifact.Reviewed {
		t.Error("reviewed flag must be set even with skipped batches")
	}
}

func TestRunUnparseableBatchPassesThrough(t *testing.T) {
	path := writeTranslation(t, okSegments(2))
	completer := &stubCompleter{responses: []string{"I cannot help with that."}}
	stage := New(completer, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	for _, seg := range artifact.Segments {
		if seg.OriginalChanged || seg.TranslationChanged {
			t.Errorf("unparseable batch must pass through untouched: %+v", seg)
		}
	}
}

func TestRunIgnoresBogusFixes(t *testing.T) {
	path := writeTranslation(t, okSegments(2))
	completer := &stubCompleter{responses: []string{
		`[{"id": 99, "translation_fixed": "nope"}, {"id": 1, "translation_fixed": "   "}]`,
	}}
	stage := New(completer, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	if artifact.Segments[0].TranslationChanged || artifact.Segments[0].Translation != "translation 1" {
		t.Errorf("blank fix must be ignored: %+v", artifact.Segments[0])
	}
}

func TestRunMissingArtifact(t *testing.T) {
	stage := New(&stubCompleter{})
	_, err := stage.Run(context.Background(), filepath.Join(t.TempDir(), "absent_translated.json"))
	if !errors.Is(err, services.ErrArtifactNotFound) {
		t.Fatalf("expected artifact not found, got %v", err)
	}
}
