package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Vetacher/zoom-translator/internal/glossary"
	"github.com/Vetacher/zoom-translator/internal/media"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
	"github.com/Vetacher/zoom-translator/internal/services/speech"
)

type stubRecognizer struct {
	results []speech.Result
	err     error

	gotHints []string
	gotBytes int
}

func (s *stubRecognizer) Transcribe(_ context.Context, audio io.Reader, hints []string) ([]speech.Result, error) {
	s.gotHints = hints
	data, _ := io.ReadAll(audio)
	s.gotBytes = len(data)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func writeAudio(t *testing.T, durationMS int64) string {
	t.Helper()
	track := media.NewTrack(16000)
	if err := track.Append(media.Silence(durationMS, 16000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	path := filepath.Join(t.TempDir(), "meeting_audio.wav")
	if err := track.Export(path); err != nil {
		t.Fatalf("export: %v", err)
	}
	return path
}

func glossaryStore(t *testing.T, content string) *glossary.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terms.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}
	return glossary.Load(path)
}

func TestRunWritesArtifact(t *testing.T) {
	audioPath := writeAudio(t, 500)
	recognizer := &stubRecognizer{
		results: []speech.Result{
			{
				Text:          "Привет, коллеги.",
				Speaker:       "Guest-1",
				OffsetTicks:   0,
				DurationTicks: 20_000_000,
				Confidence:    0.91,
				Words:         []speech.Word{{Word: "Привет", Offset: 0}, {Word: "коллеги", Offset: 10_000_000}},
			},
			{
				Text:          "Начинаем встречу.",
				Speaker:       "Guest-2",
				OffsetTicks:   50_000_000,
				DurationTicks: 20_000_000,
				Confidence:    0.88,
			},
			{
				Text:          "Да.",
				Speaker:       "Guest-1",
				OffsetTicks:   80_000_000,
				DurationTicks: 5_000_000,
				Confidence:    0.95,
			},
		},
	}
	gloss := glossaryStore(t, `{"Кубер": {"target": "Kubernetes"}}`)

	stage := New(recognizer, gloss, "ru-RU", 1000)
	outPath, err := stage.Run(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outPath != segment.TranscriptionPath(audioPath) {
		t.Errorf("unexpected artifact path %q", outPath)
	}
	if len(recognizer.gotHints) != 2 || recognizer.gotHints[0] != "Кубер" || recognizer.gotHints[1] != "Kubernetes" {
		t.Errorf("phrase hints not forwarded: %v", recognizer.gotHints)
	}
	if recognizer.gotBytes == 0 {
		t.Error("recognizer saw no audio bytes")
	}

	artifact, err := segment.LoadTranscription(outPath)
	if err != nil {
		t.Fatalf("LoadTranscription: %v", err)
	}
	if artifact.TotalSegments != 3 || len(artifact.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(artifact.Segments))
	}
	if artifact.Language != "ru-RU" || artifact.GlossaryTerms != 1 {
		t.Errorf("unexpected artifact header: %+v", artifact)
	}

	first := artifact.Segments[0]
	if first.ID != 1 || first.StartMS != 0 || first.EndMS != 2000 || first.DurationMS != 2000 {
		t.Errorf("unexpected first segment timing: %+v", first)
	}
	if len(first.Words) != 2 || first.Words[1].OffsetMS != 1000 {
		t.Errorf("word offsets not converted: %+v", first.Words)
	}
	second := artifact.Segments[1]
	if second.StartMS != 5000 || second.EndMS != 7000 {
		t.Errorf("unexpected second segment timing: %+v", second)
	}

	if artifact.Speakers["Guest-1"] != segment.GenderFemale {
		t.Errorf("first speaker should be female, got %s", artifact.Speakers["Guest-1"])
	}
	if artifact.Speakers["Guest-2"] != segment.GenderMale {
		t.Errorf("second speaker should be male, got %s", artifact.Speakers["Guest-2"])
	}
	if artifact.Segments[2].Gender != segment.GenderFemale {
		t.Errorf("returning speaker should keep gender, got %s", artifact.Segments[2].Gender)
	}
}

func TestRunAssignsFallbackSpeaker(t *testing.T) {
	audioPath := writeAudio(t, 100)
	recognizer := &stubRecognizer{
		results: []speech.Result{
			{Text: "Без диаризации.", DurationTicks: 10_000_000},
		},
	}
	stage := New(recognizer, nil, "ru-RU", 1000)
	outPath, err := stage.Run(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact, err := segment.LoadTranscription(outPath)
	if err != nil {
		t.Fatalf("LoadTranscription: %v", err)
	}
	if artifact.Segments[0].Speaker != "Guest-1" {
		t.Errorf("expected fallback speaker, got %q", artifact.Segments[0].Speaker)
	}
	if artifact.Segments[0].Gender != segment.GenderFemale {
		t.Errorf("expected female for single speaker, got %s", artifact.Segments[0].Gender)
	}
}

func TestRunSkipsBlankResults(t *testing.T) {
	audioPath := writeAudio(t, 100)
	recognizer := &stubRecognizer{
		results: []speech.Result{
			{Text: "   ", DurationTicks: 10_000_000},
			{Text: "Реплика.", Speaker: "Guest-1", OffsetTicks: 20_000_000, DurationTicks: 10_000_000},
		},
	}
	stage := New(recognizer, nil, "ru-RU", 1000)
	outPath, err := stage.Run(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact, err := segment.LoadTranscription(outPath)
	if err != nil {
		t.Fatalf("LoadTranscription: %v", err)
	}
	if len(artifact.Segments) != 1 || artifact.Segments[0].ID != 1 {
		t.Fatalf("expected single renumbered segment, got %+v", artifact.Segments)
	}
}

func TestRunLeavesNoArtifactOnFailure(t *testing.T) {
	audioPath := writeAudio(t, 100)
	recognizer := &stubRecognizer{
		err: services.Wrap(services.ErrTranscription, "transcribe", "session", "quota exceeded", nil),
	}
	stage := New(recognizer, nil, "ru-RU", 1000)
	_, err := stage.Run(context.Background(), audioPath)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if _, statErr := os.Stat(segment.TranscriptionPath(audioPath)); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("failed run must not leave an artifact behind")
	}
}

func TestRunRejectsMissingAudio(t *testing.T) {
	stage := New(&stubRecognizer{}, nil, "ru-RU", 1000)
	_, err := stage.Run(context.Background(), filepath.Join(t.TempDir(), "absent_audio.wav"))
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}
