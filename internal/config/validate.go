package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate checks the configuration for structural problems. Credential
// fields are deliberately not required here; each stage validates the
// credentials it actually needs so unrelated stages keep working.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir must not be empty")
	}
	if err := validateLanguageTag(c.Speech.SourceLanguage); err != nil {
		problems = append(problems, fmt.Sprintf("speech.source_language: %v", err))
	}
	if err := validateLanguageTag(c.TTS.TargetLanguage); err != nil {
		problems = append(problems, fmt.Sprintf("tts.target_language: %v", err))
	}
	if c.Speech.PhraseHintLimit < 0 {
		problems = append(problems, "speech.phrase_hint_limit must not be negative")
	}
	if c.Pipeline.ReviewBatchSize <= 0 {
		problems = append(problems, "pipeline.review_batch_size must be positive")
	}
	if c.Pipeline.SampleRate <= 0 {
		problems = append(problems, "pipeline.sample_rate must be positive")
	}
	if c.Pipeline.TranslateDelayMS < 0 || c.Pipeline.ReviewDelayMS < 0 || c.Pipeline.SynthesizeDelayMS < 0 {
		problems = append(problems, "pipeline delays must not be negative")
	}
	if c.Pipeline.DriftWarnMS < 0 {
		problems = append(problems, "pipeline.drift_warn_ms must not be negative")
	}
	if c.OpenAI.TimeoutSeconds < 0 {
		problems = append(problems, "openai.timeout_seconds must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func validateLanguageTag(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("must not be empty")
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("not a valid BCP 47 tag: %w", err)
	}
	return nil
}
