// Package pipeline sequences the dubbing stages over one input file: audio
// extraction, transcription, translation, consistency review, and track
// assembly. Each stage reads the previous stage's artifact from disk, so a
// failed run resumes by rerunning only the failed stage. A work-directory
// lock keeps concurrent runs from interleaving artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Vetacher/zoom-translator/internal/assemble"
	"github.com/Vetacher/zoom-translator/internal/jobstore"
	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
)

// Stage names as recorded in the run ledger.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageReview     = "review"
	StageAssemble   = "assemble"
)

// AudioExtractor pulls a mono PCM track out of a source recording.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, dest string) error
}

// ArtifactStage consumes one artifact path and returns the path it produced.
// The transcribe, translate, and review stages all have this shape.
type ArtifactStage interface {
	Run(ctx context.Context, inputPath string) (string, error)
}

// AssembleStage is the final stage; it returns a placement summary instead of
// a single path.
type AssembleStage interface {
	Run(ctx context.Context, reviewedPath string) (*assemble.Result, error)
}

// Ledger records run and stage outcomes. Satisfied by the jobstore.
type Ledger interface {
	StartRun(ctx context.Context, id, inputFile string) (*jobstore.Run, error)
	FinishRun(ctx context.Context, id string) error
	FailRun(ctx context.Context, id, reason string) error
	StartStage(ctx context.Context, runID, stage string) error
	FinishStage(ctx context.Context, runID, stage, detail string) error
	FailStage(ctx context.Context, runID, stage, reason string) error
}

// Stages bundles the five stage implementations.
type Stages struct {
	Extract    AudioExtractor
	Transcribe ArtifactStage
	Translate  ArtifactStage
	Review     ArtifactStage
	Assemble   AssembleStage
}

// Result summarizes a completed run.
type Result struct {
	RunID             string
	AudioPath         string
	TranscriptionPath string
	TranslationPath   string
	ReviewedPath      string
	TrackPath         string
	PlacementsPath    string
}

// Pipeline runs the stages in order for one input file.
type Pipeline struct {
	stages   Stages
	ledger   Ledger
	lockPath string
	logger   *slog.Logger
	newRunID func() string
}

// Option customizes the pipeline.
type Option func(*Pipeline)

// WithLedger attaches a run ledger. Ledger failures are logged, never fatal.
func WithLedger(ledger Ledger) Option {
	return func(p *Pipeline) {
		p.ledger = ledger
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRunIDSource overrides run ID generation (used in tests).
func WithRunIDSource(source func() string) Option {
	return func(p *Pipeline) {
		if source != nil {
			p.newRunID = source
		}
	}
}

// New constructs a pipeline. workDir hosts the lock file.
func New(stages Stages, workDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:   stages,
		lockPath: filepath.Join(workDir, "dubber.lock"),
		logger:   logging.NewNop(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one input file end to end. The input may be a source
// recording or an already extracted *_audio.wav; extraction is skipped for
// the latter.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	lock := flock.New(p.lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire work lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another dubbing run holds %s", p.lockPath)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			p.logger.Warn("failed to release work lock", logging.Error(unlockErr))
		}
	}()

	runID := p.newRunID()
	ctx = services.WithRunID(ctx, runID)
	log := p.logger.With(logging.String(logging.FieldRunID, runID))
	log.Info("pipeline run starting", logging.String("input", inputPath))

	if p.ledger != nil {
		if _, err := p.ledger.StartRun(ctx, runID, inputPath); err != nil {
			log.Warn("run ledger unavailable", logging.Error(err))
			p.ledger = nil
		}
	}

	result := &Result{RunID: runID}
	if err := p.runStages(ctx, inputPath, result, log); err != nil {
		p.recordRunFailure(ctx, runID, err, log)
		return nil, err
	}

	if p.ledger != nil {
		if err := p.ledger.FinishRun(ctx, runID); err != nil {
			log.Warn("failed to record run completion", logging.Error(err))
		}
	}
	log.Info("pipeline run complete",
		logging.String("track", result.TrackPath),
		logging.String("placements", result.PlacementsPath),
	)
	return result, nil
}

func (p *Pipeline) runStages(ctx context.Context, inputPath string, result *Result, log *slog.Logger) error {
	audioPath := inputPath
	if !strings.HasSuffix(inputPath, "_audio.wav") {
		audioPath = segment.AudioPath(inputPath)
		if err := p.runStage(ctx, StageExtract, log, func() (string, error) {
			return audioPath, p.stages.Extract.ExtractAudio(ctx, inputPath, audioPath)
		}); err != nil {
			return err
		}
	}
	result.AudioPath = audioPath

	var err error
	result.TranscriptionPath, err = p.runArtifactStage(ctx, StageTranscribe, p.stages.Transcribe, audioPath, log)
	if err != nil {
		return err
	}
	result.TranslationPath, err = p.runArtifactStage(ctx, StageTranslate, p.stages.Translate, result.TranscriptionPath, log)
	if err != nil {
		return err
	}
	result.ReviewedPath, err = p.runArtifactStage(ctx, StageReview, p.stages.Review, result.TranslationPath, log)
	if err != nil {
		return err
	}

	return p.runStage(ctx, StageAssemble, log, func() (string, error) {
		summary, err := p.stages.Assemble.Run(ctx, result.ReviewedPath)
		if err != nil {
			return "", err
		}
		result.TrackPath = summary.TrackPath
		result.PlacementsPath = summary.PlacementsPath
		return summary.TrackPath, nil
	})
}

func (p *Pipeline) runArtifactStage(ctx context.Context, name string, stage ArtifactStage, inputPath string, log *slog.Logger) (string, error) {
	var outPath string
	err := p.runStage(ctx, name, log, func() (string, error) {
		var stageErr error
		outPath, stageErr = stage.Run(ctx, inputPath)
		return outPath, stageErr
	})
	return outPath, err
}

func (p *Pipeline) runStage(ctx context.Context, name string, log *slog.Logger, fn func() (string, error)) error {
	runID, _ := services.RunIDFromContext(ctx)
	if p.ledger != nil {
		if err := p.ledger.StartStage(ctx, runID, name); err != nil {
			log.Warn("failed to record stage start", logging.String("stage", name), logging.Error(err))
		}
	}
	detail, err := fn()
	if err != nil {
		if p.ledger != nil {
			if recordErr := p.ledger.FailStage(ctx, runID, name, err.Error()); recordErr != nil {
				log.Warn("failed to record stage failure", logging.String("stage", name), logging.Error(recordErr))
			}
		}
		return fmt.Errorf("%s stage: %w", name, err)
	}
	if p.ledger != nil {
		if recordErr := p.ledger.FinishStage(ctx, runID, name, detail); recordErr != nil {
			log.Warn("failed to record stage completion", logging.String("stage", name), logging.Error(recordErr))
		}
	}
	return nil
}

func (p *Pipeline) recordRunFailure(ctx context.Context, runID string, err error, log *slog.Logger) {
	log.Error("pipeline run failed", logging.Error(err))
	if p.ledger == nil {
		return
	}
	if recordErr := p.ledger.FailRun(ctx, runID, err.Error()); recordErr != nil {
		log.Warn("failed to record run failure", logging.Error(recordErr))
	}
}
