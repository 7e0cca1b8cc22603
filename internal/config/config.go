package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir      string `toml:"work_dir"`
	LogDir       string `toml:"log_dir"`
	GlossaryPath string `toml:"glossary_path"`
}

// Speech contains configuration for the Azure speech-to-text service.
type Speech struct {
	Key            string `toml:"key"`
	Region         string `toml:"region"`
	SourceLanguage string `toml:"source_language"`
	// PhraseHintLimit caps the number of glossary-derived phrase hints sent
	// to the recognizer. The service rejects oversized phrase lists.
	PhraseHintLimit int `toml:"phrase_hint_limit"`
}

// OpenAI contains configuration for the Azure OpenAI translation service.
type OpenAI struct {
	Key            string `toml:"key"`
	Endpoint       string `toml:"endpoint"`
	Deployment     string `toml:"deployment"`
	APIVersion     string `toml:"api_version"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains configuration for the Azure text-to-speech service.
type TTS struct {
	TargetLanguage string `toml:"target_language"`
	MaleVoice      string `toml:"male_voice"`
	FemaleVoice    string `toml:"female_voice"`
	DefaultVoice   string `toml:"default_voice"`
	// Rate is the SSML prosody rate applied to every synthesized clip,
	// e.g. "-10%" to slow speech slightly so translations fit better.
	Rate string `toml:"rate"`
}

// Pipeline contains stage tuning knobs.
type Pipeline struct {
	// TranslateDelayMS is the pause between translation requests. Throughput
	// protection, not retry logic.
	TranslateDelayMS int `toml:"translate_delay_ms"`
	// ReviewBatchSize bounds how many segments are sent per review request.
	ReviewBatchSize int `toml:"review_batch_size"`
	// ReviewDelayMS is the pause between review batches.
	ReviewDelayMS int `toml:"review_delay_ms"`
	// SynthesizeDelayMS is the pause between synthesis requests.
	SynthesizeDelayMS int `toml:"synthesize_delay_ms"`
	// DriftWarnMS is the absolute drift beyond which the assembly engine
	// logs a warning. Observability only; no corrective action.
	DriftWarnMS int64 `toml:"drift_warn_ms"`
	// GlossaryPromptLimit caps how many glossary lines are embedded in the
	// translation instruction.
	GlossaryPromptLimit int `toml:"glossary_prompt_limit"`
	// SampleRate is the PCM sample rate of extracted and exported audio.
	SampleRate int `toml:"sample_rate"`
	// FFmpegBinary overrides the ffmpeg executable used for extraction.
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the dubbing pipeline.
//
// Configuration sections by subsystem:
//   - Paths: work directory, log directory, glossary location
//   - Speech: Azure speech-to-text credentials and source language
//   - OpenAI: Azure OpenAI credentials for translation and review
//   - TTS: Azure text-to-speech voices for the target language
//   - Pipeline: batch sizes, inter-request delays, drift threshold
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Speech   Speech   `toml:"speech"`
	OpenAI   OpenAI   `toml:"openai"`
	TTS      TTS      `toml:"tts"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubber/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. When no file exists the defaults are
// returned with exists=false so callers can decide whether that is fatal.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("dubber.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// clobber an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the work and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.GlossaryPath, err = expandPath(c.Paths.GlossaryPath); err != nil {
		return err
	}
	c.Speech.Region = strings.TrimSpace(c.Speech.Region)
	c.Speech.Key = strings.TrimSpace(c.Speech.Key)
	c.OpenAI.Key = strings.TrimSpace(c.OpenAI.Key)
	c.OpenAI.Endpoint = strings.TrimRight(strings.TrimSpace(c.OpenAI.Endpoint), "/")
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
