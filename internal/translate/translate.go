// Package translate runs the translation stage: every transcript segment goes
// through the chat model one at a time with a terminology-constrained prompt.
// Failures are soft per segment; a marked sentinel keeps the original text
// auditable without stopping the stage.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vetacher/zoom-translator/internal/glossary"
	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
)

// Completer produces one chat completion. Satisfied by the openai client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Sleeper pauses between requests so the stage stays under provider rate
// limits. Tests substitute an instant implementation.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Translator is the translation stage.
type Translator struct {
	completer      Completer
	gloss          *glossary.Store
	sourceLanguage string
	targetLanguage string
	promptLimit    int
	requestDelay   time.Duration
	sleeper        Sleeper
	logger         *slog.Logger
}

// Option customizes the stage.
type Option func(*Translator)

// WithSleeper overrides the inter-request sleeper.
func WithSleeper(s Sleeper) Option {
	return func(t *Translator) {
		if s != nil {
			t.sleeper = s
		}
	}
}

// WithRequestDelay sets the pause between completion requests.
func WithRequestDelay(d time.Duration) Option {
	return func(t *Translator) {
		if d >= 0 {
			t.requestDelay = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs the stage. gloss may be nil when no glossary is configured.
func New(completer Completer, gloss *glossary.Store, sourceLanguage, targetLanguage string, promptLimit int, opts ...Option) *Translator {
	t := &Translator{
		completer:      completer,
		gloss:          gloss,
		sourceLanguage: strings.TrimSpace(sourceLanguage),
		targetLanguage: strings.TrimSpace(targetLanguage),
		promptLimit:    promptLimit,
		sleeper:        defaultSleeper,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run translates one transcription artifact and writes the translation
// artifact. Returns the artifact path.
func (t *Translator) Run(ctx context.Context, transcriptionPath string) (string, error) {
	ctx = services.WithStage(ctx, "translate")
	log := t.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	source, err := segment.LoadTranscription(transcriptionPath)
	if err != nil {
		return "", err
	}
	systemPrompt := t.buildSystemPrompt()

	translated := make([]segment.TranslatedSegment, 0, len(source.Segments))
	var filtered, failed int
	for i, seg := range source.Segments {
		if i > 0 && t.requestDelay > 0 {
			if err := t.sleeper(ctx, t.requestDelay); err != nil {
				return "", services.Wrap(services.ErrExternalService, "translate", "pace requests", "canceled", err)
			}
		}
		out := segment.TranslatedSegment{
			ID:         seg.ID,
			Speaker:    seg.Speaker,
			Gender:     seg.Gender,
			StartMS:    seg.StartMS,
			EndMS:      seg.EndMS,
			DurationMS: seg.DurationMS,
			Confidence: seg.Confidence,
			Original:   seg.Text,
		}
		translation, err := t.completer.Complete(ctx, systemPrompt, seg.Text)
		switch {
		case err == nil && strings.TrimSpace(translation) != "":
			out.Translation = strings.TrimSpace(translation)
			out.TranslationStatus = segment.StatusOK
		case errors.Is(err, services.ErrContentFiltered):
			filtered++
			out.Translation = segment.FilteredSentinelPrefix + seg.Text
			out.TranslationStatus = segment.StatusContentFiltered
			log.Warn("segment rejected by content policy",
				logging.Int("segment", seg.ID),
			)
		default:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", services.Wrap(services.ErrExternalService, "translate", "complete segment", "canceled", err)
			}
			failed++
			out.Translation = segment.ErrorSentinel
			out.TranslationStatus = segment.StatusError
			log.Warn("segment translation failed",
				logging.Int("segment", seg.ID),
				logging.Error(err),
			)
		}
		translated = append(translated, out)
	}

	artifact := segment.TranslationArtifact{
		SchemaVersion:  segment.SchemaVersion,
		AudioFile:      source.AudioFile,
		SourceLanguage: t.sourceLanguage,
		TargetLanguage: t.targetLanguage,
		TotalSegments:  len(translated),
		Speakers:       source.Speakers,
		GlossaryTerms:  source.GlossaryTerms,
		Segments:       translated,
	}
	outPath := segment.TranslationPath(transcriptionPath)
	if err := segment.Save(outPath, artifact); err != nil {
		return "", services.Wrap(services.ErrExternalService, "translate", "write artifact", outPath, err)
	}
	log.Info("translation complete",
		logging.String("artifact", outPath),
		logging.Int("segments", len(translated)),
		logging.Int("filtered", filtered),
		logging.Int("failed", failed),
	)
	return outPath, nil
}

// buildSystemPrompt assembles the translator persona, cleanup rules, and the
// glossary fragment with exact required translations.
func (t *Translator) buildSystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"You are a professional translator for recorded business meetings. Translate the user's text from %s to %s.\n",
		languageName(t.sourceLanguage), languageName(t.targetLanguage))
	b.WriteString("Rules:\n")
	b.WriteString("- Preserve the meaning and tone of the original.\n")
	b.WriteString("- Remove filler words and verbal tics (well, um, you know and their equivalents) when they carry no meaning.\n")
	b.WriteString("- Keep names, numbers, and product identifiers exactly as spoken.\n")
	b.WriteString("- The translation will be spoken aloud; prefer natural spoken phrasing.\n")
	b.WriteString("- Respond with the translated text only, no quotes and no commentary.\n")
	if t.gloss != nil {
		if fragment := t.gloss.PromptFragment(t.promptLimit); fragment != "" {
			b.WriteString("\n")
			b.WriteString(fragment)
		}
	}
	return b.String()
}

// languageName maps the common tags to prose for the prompt; anything else
// passes through as the raw tag.
func languageName(tag string) string {
	switch strings.ToLower(tag) {
	case "ru", "ru-ru":
		return "Russian"
	case "en", "en-us", "en-gb":
		return "English"
	case "de", "de-de":
		return "German"
	case "fr", "fr-fr":
		return "French"
	case "es", "es-es":
		return "Spanish"
	default:
		if tag == "" {
			return "the source language"
		}
		return tag
	}
}
