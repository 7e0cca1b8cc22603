package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Vetacher/zoom-translator/internal/glossary"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
)

type stubCompleter struct {
	responses map[string]string
	errs      map[string]error

	prompts []string
	system  string
}

func (s *stubCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.system = systemPrompt
	s.prompts = append(s.prompts, userPrompt)
	if err, ok := s.errs[userPrompt]; ok {
		return "", err
	}
	if response, ok := s.responses[userPrompt]; ok {
		return response, nil
	}
	return "translated: " + userPrompt, nil
}

func instantSleeper(context.Context, time.Duration) error { return nil }

func writeTranscription(t *testing.T, segments []segment.TranscriptSegment) string {
	t.Helper()
	artifact := segment.TranscriptionArtifact{
		SchemaVersion: segment.SchemaVersion,
		AudioFile:     "meeting_audio.wav",
		Language:      "ru-RU",
		TotalSegments: len(segments),
		Speakers:      map[string]segment.Gender{"Guest-1": segment.GenderFemale},
		GlossaryTerms: 2,
		Segments:      segments,
	}
	path := filepath.Join(t.TempDir(), "meeting_transcription.json")
	if err := segment.Save(path, artifact); err != nil {
		t.Fatalf("save transcription: %v", err)
	}
	return path
}

func loadGlossary(t *testing.T, content string) *glossary.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}
	return glossary.Load(path)
}

func TestRunTranslatesSegments(t *testing.T) {
	path := writeTranscription(t, []segment.TranscriptSegment{
		{ID: 1, Speaker: "Guest-1", Gender: segment.GenderFemale, StartMS: 0, EndMS: 2000, DurationMS: 2000, Text: "Привет."},
		{ID: 2, Speaker: "Guest-1", Gender: segment.GenderFemale, StartMS: 5000, EndMS: 7000, DurationMS: 2000, Text: "Начинаем."},
	})
	completer := &stubCompleter{responses: map[string]string{
		"Привет.":   "Hello.",
		"Начинаем.": "  Let's begin.  ",
	}}
	stage := New(completer, nil, "ru-RU", "en-US", 50, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outPath != segment.TranslationPath(path) {
		t.Errorf("unexpected artifact path %q", outPath)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	if artifact.SourceLanguage != "ru-RU" || artifact.TargetLanguage != "en-US" || artifact.Reviewed {
		t.Errorf("unexpected artifact header: %+v", artifact)
	}
	if artifact.Segments[0].Translation != "Hello." || artifact.Segments[0].TranslationStatus != segment.StatusOK {
		t.Errorf("unexpected first segment: %+v", artifact.Segments[0])
	}
	if artifact.Segments[1].Translation != "Let's begin." {
		t.Errorf("model output not trimmed: %q", artifact.Segments[1].Translation)
	}
	if artifact.Segments[0].Original != "Привет." || artifact.Segments[0].StartMS != 0 || artifact.Segments[1].StartMS != 5000 {
		t.Errorf("timing or original text lost: %+v", artifact.Segments)
	}
}

func TestRunGlossaryInPrompt(t *testing.T) {
	path := writeTranscription(t, []segment.TranscriptSegment{
		{ID: 1, Speaker: "Guest-1", StartMS: 0, EndMS: 1000, DurationMS: 1000, Text: "Кубер упал."},
	})
	gloss := loadGlossary(t, `{"Кубер": {"target": "Kubernetes", "alternatives": ["кубик"]}}`)
	completer := &stubCompleter{}
	stage := New(completer, gloss, "ru-RU", "en-US", 50, WithSleeper(instantSleeper))

	if _, err := stage.Run(context.Background(), path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(completer.system, "IMPORTANT TERMINOLOGY") {
		t.Errorf("glossary header missing from system prompt:\n%s", completer.system)
	}
	if !strings.Contains(completer.system, "Kubernetes") {
		t.Errorf("glossary target missing from system prompt:\n%s", completer.system)
	}
	if len(completer.prompts) != 1 || completer.prompts[0] != "Кубер упал." {
		t.Errorf("segment text not sent verbatim: %v", completer.prompts)
	}
}

func TestRunFailSoft(t *testing.T) {
	path := writeTranscription(t, []segment.TranscriptSegment{
		{ID: 1, Speaker: "Guest-1", StartMS: 0, EndMS: 1000, DurationMS: 1000, Text: "Нормальный текст."},
		{ID: 2, Speaker: "Guest-1", StartMS: 2000, EndMS: 3000, DurationMS: 1000, Text: "Запрещенный текст."},
		{ID: 3, Speaker: "Guest-1", StartMS: 4000, EndMS: 5000, DurationMS: 1000, Text: "Сломанный текст."},
	})
	completer := &stubCompleter{
		responses: map[string]string{"Нормальный текст.": "Normal text."},
		errs: map[string]error{
			"Запрещенный текст.": services.Wrap(services.ErrContentFiltered, "translate", "complete", "", nil),
			"Сломанный текст.":   errors.New("http 500"),
		},
	}
	stage := New(completer, nil, "ru-RU", "en-US", 50, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run must not fail on per-segment errors: %v", err)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	if len(artifact.Segments) != 3 {
		t.Fatalf("all segments must survive, got %d", len(artifact.Segments))
	}
	filtered := artifact.Segments[1]
	if filtered.TranslationStatus != segment.StatusContentFiltered {
		t.Errorf("expected content_filtered status, got %s", filtered.TranslationStatus)
	}
	if filtered.Translation != segment.FilteredSentinelPrefix+"Запрещенный текст." {
		t.Errorf("unexpected filtered sentinel %q", filtered.Translation)
	}
	if filtered.Synthesizable() {
		t.Error("filtered segment must not be synthesizable")
	}
	failed := artifact.Segments[2]
	if failed.TranslationStatus != segment.StatusError || failed.Translation != segment.ErrorSentinel {
		t.Errorf("unexpected failed segment: %+v", failed)
	}
	if artifact.Segments[0].TranslationStatus != segment.StatusOK {
		t.Errorf("good segment must stay ok: %+v", artifact.Segments[0])
	}
}

func TestRunBlankCompletionIsError(t *testing.T) {
	path := writeTranscription(t, []segment.TranscriptSegment{
		{ID: 1, Speaker: "Guest-1", StartMS: 0, EndMS: 1000, DurationMS: 1000, Text: "Тихий текст."},
	})
	completer := &stubCompleter{responses: map[string]string{"Тихий текст.": "   "}}
	stage := New(completer, nil, "ru-RU", "en-US", 50, WithSleeper(instantSleeper))

	outPath, err := stage.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact, err := segment.LoadTranslation(outPath)
	if err != nil {
		t.Fatalf("LoadTranslation: %v", err)
	}
	if artifact.Segments[0].TranslationStatus != segment.StatusError {
		t.Errorf("blank completion must mark the segment failed: %+v", artifact.Segments[0])
	}
}

func TestRunPacesRequests(t *testing.T) {
	path := writeTranscription(t, []segment.TranscriptSegment{
		{ID: 1, Speaker: "Guest-1", StartMS: 0, EndMS: 1000, DurationMS: 1000, Text: "Один."},
		{ID: 2, Speaker: "Guest-1", StartMS: 2000, EndMS: 3000, DurationMS: 1000, Text: "Два."},
		{ID: 3, Speaker: "Guest-1", StartMS: 4000, EndMS: 5000, DurationMS: 1000, Text: "Три."},
	})
	var pauses []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	stage := New(&stubCompleter{}, nil, "ru-RU", "en-US", 50,
		WithSleeper(sleeper), WithRequestDelay(250*time.Millisecond))

	if _, err := stage.Run(context.Background(), path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pauses) != 2 {
		t.Fatalf("expected a pause between each request, got %d", len(pauses))
	}
	for _, pause := range pauses {
		if pause != 250*time.Millisecond {
			t.Errorf("unexpected pause %v", pause)
		}
	}
}

func TestRunMissingArtifact(t *testing.T) {
	stage := New(&stubCompleter{}, nil, "ru-RU", "en-US", 50)
	_, err := stage.Run(context.Background(), filepath.Join(t.TempDir(), "absent_transcription.json"))
	if !errors.Is(err, services.ErrArtifactNotFound) {
		t.Fatalf("expected artifact not found, got %v", err)
	}
}
