package config

const (
	defaultWorkDir             = "~/.local/share/dubber/work"
	defaultLogDir              = "~/.local/share/dubber/logs"
	defaultGlossaryPath        = "~/.config/dubber/glossary.json"
	defaultSourceLanguage      = "ru-RU"
	defaultTargetLanguage      = "en-US"
	defaultPhraseHintLimit     = 1000
	defaultAPIVersion          = "2024-08-01-preview"
	defaultOpenAITimeoutSec    = 60
	defaultMaleVoice           = "en-US-GuyNeural"
	defaultFemaleVoice         = "en-US-JennyNeural"
	defaultTTSRate             = "-10%"
	defaultTranslateDelayMS    = 100
	defaultReviewBatchSize     = 10
	defaultReviewDelayMS       = 1000
	defaultSynthesizeDelayMS   = 100
	defaultDriftWarnMS         = 2000
	defaultGlossaryPromptLimit = 50
	defaultSampleRate          = 16000
	defaultFFmpegBinary        = "ffmpeg"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:      defaultWorkDir,
			LogDir:       defaultLogDir,
			GlossaryPath: defaultGlossaryPath,
		},
		Speech: Speech{
			SourceLanguage:  defaultSourceLanguage,
			PhraseHintLimit: defaultPhraseHintLimit,
		},
		OpenAI: OpenAI{
			APIVersion:     defaultAPIVersion,
			TimeoutSeconds: defaultOpenAITimeoutSec,
		},
		TTS: TTS{
			TargetLanguage: defaultTargetLanguage,
			MaleVoice:      defaultMaleVoice,
			FemaleVoice:    defaultFemaleVoice,
			DefaultVoice:   defaultFemaleVoice,
			Rate:           defaultTTSRate,
		},
		Pipeline: Pipeline{
			TranslateDelayMS:    defaultTranslateDelayMS,
			ReviewBatchSize:     defaultReviewBatchSize,
			ReviewDelayMS:       defaultReviewDelayMS,
			SynthesizeDelayMS:   defaultSynthesizeDelayMS,
			DriftWarnMS:         defaultDriftWarnMS,
			GlossaryPromptLimit: defaultGlossaryPromptLimit,
			SampleRate:          defaultSampleRate,
			FFmpegBinary:        defaultFFmpegBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
