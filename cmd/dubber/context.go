package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Vetacher/zoom-translator/internal/assemble"
	"github.com/Vetacher/zoom-translator/internal/config"
	"github.com/Vetacher/zoom-translator/internal/glossary"
	"github.com/Vetacher/zoom-translator/internal/jobstore"
	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/media"
	"github.com/Vetacher/zoom-translator/internal/pipeline"
	"github.com/Vetacher/zoom-translator/internal/review"
	"github.com/Vetacher/zoom-translator/internal/services/openai"
	"github.com/Vetacher/zoom-translator/internal/services/speech"
	"github.com/Vetacher/zoom-translator/internal/services/tts"
	"github.com/Vetacher/zoom-translator/internal/transcribe"
	"github.com/Vetacher/zoom-translator/internal/translate"
)

// commandContext lazily builds the shared collaborators so commands that
// never touch a given service do not pay for its setup.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	glossaryOnce sync.Once
	glossary     *glossary.Store
	glossaryErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewWithFile(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		}, cfg.Paths.LogDir)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureGlossary() (*glossary.Store, error) {
	c.glossaryOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.glossaryErr = err
			return
		}
		logger, err := c.ensureLogger()
		if err != nil {
			c.glossaryErr = err
			return
		}
		c.glossary = glossary.Load(cfg.Paths.GlossaryPath, glossary.WithLogger(logger))
	})
	return c.glossary, c.glossaryErr
}

func (c *commandContext) newExtractor() (*media.Extractor, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return media.NewExtractor(cfg.Pipeline.FFmpegBinary, cfg.Pipeline.SampleRate), nil
}

func (c *commandContext) newTranscriber() (*transcribe.Transcriber, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	gloss, err := c.ensureGlossary()
	if err != nil {
		return nil, err
	}
	recognizer := speech.NewClient(speech.Config{
		Key:      cfg.Speech.Key,
		Region:   cfg.Speech.Region,
		Language: cfg.Speech.SourceLanguage,
	})
	return transcribe.New(recognizer, gloss, cfg.Speech.SourceLanguage, cfg.Speech.PhraseHintLimit,
		transcribe.WithLogger(logger)), nil
}

func (c *commandContext) newTranslator() (*translate.Translator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	gloss, err := c.ensureGlossary()
	if err != nil {
		return nil, err
	}
	completer := openai.NewClient(openai.Config{
		Key:            cfg.OpenAI.Key,
		Endpoint:       cfg.OpenAI.Endpoint,
		Deployment:     cfg.OpenAI.Deployment,
		APIVersion:     cfg.OpenAI.APIVersion,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	return translate.New(completer, gloss, cfg.Speech.SourceLanguage, cfg.TTS.TargetLanguage,
		cfg.Pipeline.GlossaryPromptLimit,
		translate.WithRequestDelay(time.Duration(cfg.Pipeline.TranslateDelayMS)*time.Millisecond),
		translate.WithLogger(logger)), nil
}

func (c *commandContext) newReviewer() (*review.Reviewer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	completer := openai.NewClient(openai.Config{
		Key:            cfg.OpenAI.Key,
		Endpoint:       cfg.OpenAI.Endpoint,
		Deployment:     cfg.OpenAI.Deployment,
		APIVersion:     cfg.OpenAI.APIVersion,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	return review.New(completer,
		review.WithBatchSize(cfg.Pipeline.ReviewBatchSize),
		review.WithBatchDelay(time.Duration(cfg.Pipeline.ReviewDelayMS)*time.Millisecond),
		review.WithLogger(logger)), nil
}

func (c *commandContext) newAssembler() (*assemble.Assembler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	synthesizer := tts.NewClient(tts.Config{
		Key:      cfg.Speech.Key,
		Region:   cfg.Speech.Region,
		Language: cfg.TTS.TargetLanguage,
		Rate:     cfg.TTS.Rate,
	})
	voices := assemble.Voices{
		Male:    cfg.TTS.MaleVoice,
		Female:  cfg.TTS.FemaleVoice,
		Default: cfg.TTS.DefaultVoice,
	}
	return assemble.New(synthesizer, voices, cfg.Pipeline.SampleRate,
		assemble.WithDriftWarnThreshold(cfg.Pipeline.DriftWarnMS),
		assemble.WithRequestDelay(time.Duration(cfg.Pipeline.SynthesizeDelayMS)*time.Millisecond),
		assemble.WithLogger(logger)), nil
}

func (c *commandContext) openLedger() (*jobstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return jobstore.Open(cfg.Paths.LogDir)
}

func (c *commandContext) newPipeline() (*pipeline.Pipeline, *jobstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	extractor, err := c.newExtractor()
	if err != nil {
		return nil, nil, err
	}
	transcriber, err := c.newTranscriber()
	if err != nil {
		return nil, nil, err
	}
	translator, err := c.newTranslator()
	if err != nil {
		return nil, nil, err
	}
	reviewer, err := c.newReviewer()
	if err != nil {
		return nil, nil, err
	}
	assembler, err := c.newAssembler()
	if err != nil {
		return nil, nil, err
	}

	stages := pipeline.Stages{
		Extract:    extractor,
		Transcribe: transcriber,
		Translate:  translator,
		Review:     reviewer,
		Assemble:   assembler,
	}
	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	ledger, err := c.openLedger()
	if err != nil {
		logger.Warn("run ledger unavailable", logging.Error(err))
		ledger = nil
	} else {
		opts = append(opts, pipeline.WithLedger(ledger))
	}
	return pipeline.New(stages, cfg.Paths.WorkDir, opts...), ledger, nil
}
