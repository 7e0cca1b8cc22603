// Package transcribe runs the ingestion stage: it streams an extracted audio
// file through the speech recognizer, folds the finalized results into ordered
// transcript segments, assigns a synthesis gender to each speaker, and writes
// the transcription artifact. The stage is all or nothing; a recognition
// failure leaves no artifact behind.
package transcribe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/Vetacher/zoom-translator/internal/glossary"
	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/media"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
	"github.com/Vetacher/zoom-translator/internal/services/speech"
)

// fallbackSpeaker labels results the recognizer returned without a
// diarization token so gender assignment still has something to key on.
const fallbackSpeaker = "Guest-1"

// Recognizer streams audio and returns finalized recognition results.
type Recognizer interface {
	Transcribe(ctx context.Context, audio io.Reader, phraseHints []string) ([]speech.Result, error)
}

// SpeakerClassifier maps diarization tokens to synthesis genders. Tokens are
// presented in first-appearance order.
type SpeakerClassifier interface {
	Classify(speakers []string) map[string]segment.Gender
}

// alternationClassifier assigns genders round-robin in appearance order
// starting with female. Crude, but it guarantees adjacent speakers get
// distinct voices in the common two-party call.
type alternationClassifier struct{}

func (alternationClassifier) Classify(speakers []string) map[string]segment.Gender {
	genders := make(map[string]segment.Gender, len(speakers))
	next := segment.GenderFemale
	for _, speaker := range speakers {
		if _, seen := genders[speaker]; seen {
			continue
		}
		genders[speaker] = next
		if next == segment.GenderFemale {
			next = segment.GenderMale
		} else {
			next = segment.GenderFemale
		}
	}
	return genders
}

// Transcriber is the ingestion stage.
type Transcriber struct {
	recognizer      Recognizer
	classifier      SpeakerClassifier
	gloss           *glossary.Store
	language        string
	phraseHintLimit int
	logger          *slog.Logger
}

// Option customizes the stage.
type Option func(*Transcriber)

// WithSpeakerClassifier overrides the default alternation heuristic.
func WithSpeakerClassifier(c SpeakerClassifier) Option {
	return func(t *Transcriber) {
		if c != nil {
			t.classifier = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transcriber) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs the stage. gloss may be nil when no glossary is configured.
func New(recognizer Recognizer, gloss *glossary.Store, language string, phraseHintLimit int, opts ...Option) *Transcriber {
	t := &Transcriber{
		recognizer:      recognizer,
		classifier:      alternationClassifier{},
		gloss:           gloss,
		language:        strings.TrimSpace(language),
		phraseHintLimit: phraseHintLimit,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run transcribes one audio file and writes its transcription artifact.
// Returns the artifact path.
func (t *Transcriber) Run(ctx context.Context, audioPath string) (string, error) {
	ctx = services.WithStage(ctx, "transcribe")
	log := t.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	clip, err := media.ReadWAVFile(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "read audio", audioPath, err)
	}

	var hints []string
	if t.gloss != nil {
		hints = t.gloss.PhraseHints(t.phraseHintLimit)
	}
	log.Info("starting recognition session",
		logging.String("audio", audioPath),
		logging.Int64("audio_duration_ms", clip.DurationMS()),
		logging.Int("phrase_hints", len(hints)),
	)

	results, err := t.recognizer.Transcribe(ctx, bytes.NewReader(clip.Data), hints)
	if err != nil {
		return "", err
	}

	segments := t.buildSegments(results)
	if err := segment.ValidateTranscriptOrder(segments); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribe", "order segments", "", err)
	}
	speakers := t.classifier.Classify(speakerOrder(segments))
	for i := range segments {
		segments[i].Gender = speakers[segments[i].Speaker]
	}

	glossaryTerms := 0
	if t.gloss != nil {
		glossaryTerms = t.gloss.Len()
	}
	artifact := segment.TranscriptionArtifact{
		SchemaVersion: segment.SchemaVersion,
		AudioFile:     audioPath,
		Language:      t.language,
		TotalSegments: len(segments),
		Speakers:      speakers,
		GlossaryTerms: glossaryTerms,
		Segments:      segments,
	}
	outPath := segment.TranscriptionPath(audioPath)
	if err := segment.Save(outPath, artifact); err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "write artifact", outPath, err)
	}
	log.Info("transcription complete",
		logging.String("artifact", outPath),
		logging.Int("segments", len(segments)),
		logging.Int("speakers", len(speakers)),
	)
	return outPath, nil
}

func (t *Transcriber) buildSegments(results []speech.Result) []segment.TranscriptSegment {
	segments := make([]segment.TranscriptSegment, 0, len(results))
	for _, result := range results {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}
		start := speech.TicksToMS(result.OffsetTicks)
		end := start + speech.TicksToMS(result.DurationTicks)
		speaker := strings.TrimSpace(result.Speaker)
		if speaker == "" {
			speaker = fallbackSpeaker
		}
		words := make([]segment.Word, 0, len(result.Words))
		for _, word := range result.Words {
			words = append(words, segment.Word{
				Text:     word.Word,
				OffsetMS: speech.TicksToMS(word.Offset),
			})
		}
		segments = append(segments, segment.TranscriptSegment{
			ID:         len(segments) + 1,
			Speaker:    speaker,
			StartMS:    start,
			EndMS:      end,
			DurationMS: end - start,
			Text:       text,
			Confidence: result.Confidence,
			Words:      words,
		})
	}
	return segments
}

func speakerOrder(segments []segment.TranscriptSegment) []string {
	order := make([]string, 0, len(segments))
	for _, seg := range segments {
		order = append(order, seg.Speaker)
	}
	return order
}
