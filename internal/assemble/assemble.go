// Package assemble runs the final stage: it synthesizes every reviewed
// segment and lays the clips onto a single output track, keeping each clip as
// close to its source timing as the already-consumed track allows. The track
// advances through a cursor: when the next segment starts later than the
// cursor the gap is filled with silence, and when synthesized speech has
// overrun the source timing the clip is placed immediately with the overrun
// carried as drift.
package assemble

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/media"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
)

// Synthesizer renders one segment of text with a named voice. Satisfied by
// the tts client.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice, text string) (media.Clip, error)
}

// Sleeper paces synthesis requests.
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

// Voices maps speaker genders to synthesis voice names.
type Voices struct {
	Male    string
	Female  string
	Default string
}

// Voice picks the voice for a gender, falling back to Default.
func (v Voices) Voice(gender segment.Gender) string {
	switch gender {
	case segment.GenderMale:
		if v.Male != "" {
			return v.Male
		}
	case segment.GenderFemale:
		if v.Female != "" {
			return v.Female
		}
	}
	return v.Default
}

// Result summarizes one assembly run.
type Result struct {
	TrackPath       string
	PlacementsPath  string
	TrackDurationMS int64
	SilenceMS       int64
	Placed          int
	Dropped         int
	MaxDriftMS      int64
}

// Assembler is the synthesis and placement stage.
type Assembler struct {
	synthesizer  Synthesizer
	voices       Voices
	sampleRate   int
	driftWarnMS  int64
	requestDelay time.Duration
	sleeper      Sleeper
	logger       *slog.Logger
}

// Option customizes the stage.
type Option func(*Assembler)

// WithRequestDelay sets the pause between synthesis requests.
func WithRequestDelay(d time.Duration) Option {
	return func(a *Assembler) {
		if d >= 0 {
			a.requestDelay = d
		}
	}
}

// WithSleeper overrides the pacing sleeper.
func WithSleeper(s Sleeper) Option {
	return func(a *Assembler) {
		if s != nil {
			a.sleeper = s
		}
	}
}

// WithDriftWarnThreshold sets the absolute drift in milliseconds beyond which
// a placement logs a warning.
func WithDriftWarnThreshold(ms int64) Option {
	return func(a *Assembler) {
		if ms > 0 {
			a.driftWarnMS = ms
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New constructs the stage.
func New(synthesizer Synthesizer, voices Voices, sampleRate int, opts ...Option) *Assembler {
	a := &Assembler{
		synthesizer: synthesizer,
		voices:      voices,
		sampleRate:  sampleRate,
		driftWarnMS: 2000,
		sleeper:     defaultSleeper,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run assembles the dubbed track for one reviewed artifact and writes the
// track plus its placement list. Returns a summary of the run.
func (a *Assembler) Run(ctx context.Context, reviewedPath string) (*Result, error) {
	ctx = services.WithStage(ctx, "assemble")
	log := a.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	artifact, err := segment.LoadTranslation(reviewedPath)
	if err != nil {
		return nil, err
	}

	track := media.NewTrack(a.sampleRate)
	placements := make([]segment.Placement, 0, len(artifact.Segments))
	var cursorMS, silenceMS, maxDrift int64
	var dropped, requested int

	for _, seg := range artifact.Segments {
		if !seg.Synthesizable() {
			continue
		}
		if requested > 0 && a.requestDelay > 0 {
			if err := a.sleeper(ctx, a.requestDelay); err != nil {
				return nil, services.Wrap(services.ErrSynthesis, "assemble", "pace requests", "canceled", err)
			}
		}
		requested++

		// Catch up to the segment's source start when the track is ahead of
		// it. The gap goes down before synthesis, so a segment that later
		// fails still leaves the track aligned at its start. When the track
		// has already overrun the start there is nothing to remove; the clip
		// goes down immediately and the overrun shows up as drift.
		if cursorMS < seg.StartMS {
			gap := seg.StartMS - cursorMS
			if err := track.Append(media.Silence(gap, a.sampleRate)); err != nil {
				return nil, services.Wrap(services.ErrSynthesis, "assemble", "append silence", "", err)
			}
			silenceMS += gap
			cursorMS = seg.StartMS
		}

		clip, err := a.synthesizer.Synthesize(ctx, a.voices.Voice(seg.Gender), seg.Translation)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, services.Wrap(services.ErrSynthesis, "assemble", "synthesize segment", "canceled", err)
			}
			dropped++
			log.Warn("segment dropped from track",
				logging.Int("segment", seg.ID),
				logging.Error(err),
			)
			continue
		}

		placedStart := cursorMS
		if err := track.Append(clip); err != nil {
			return nil, services.Wrap(services.ErrSynthesis, "assemble", "append clip", "", err)
		}
		cursorMS = placedStart + clip.DurationMS()

		drift := cursorMS - seg.EndMS
		placements = append(placements, segment.Placement{
			SegmentID:             seg.ID,
			SynthesizedDurationMS: clip.DurationMS(),
			PlacedStartMS:         placedStart,
			PlacedEndMS:           cursorMS,
			DriftMS:               drift,
		})
		abs := drift
		if abs < 0 {
			abs = -abs
		}
		if abs > maxDrift {
			maxDrift = abs
		}
		if abs >= a.driftWarnMS {
			log.Warn("placement drift above threshold",
				logging.Int("segment", seg.ID),
				logging.Int64("drift_ms", drift),
			)
		}
	}

	if err := segment.ValidatePlacementOrder(placements); err != nil {
		return nil, services.Wrap(services.ErrValidation, "assemble", "order placements", "", err)
	}

	trackPath := segment.TrackPath(reviewedPath, artifact.TargetLanguage)
	if err := track.Export(trackPath); err != nil {
		return nil, services.Wrap(services.ErrSynthesis, "assemble", "export track", trackPath, err)
	}
	placementsPath := segment.PlacementsPath(reviewedPath)
	placementArtifact := segment.PlacementArtifact{
		SchemaVersion:   segment.SchemaVersion,
		TrackFile:       trackPath,
		TrackDurationMS: track.DurationMS(),
		SilenceMS:       silenceMS,
		Placements:      placements,
	}
	if err := segment.Save(placementsPath, placementArtifact); err != nil {
		return nil, services.Wrap(services.ErrSynthesis, "assemble", "write placements", placementsPath, err)
	}

	result := &Result{
		TrackPath:       trackPath,
		PlacementsPath:  placementsPath,
		TrackDurationMS: track.DurationMS(),
		SilenceMS:       silenceMS,
		Placed:          len(placements),
		Dropped:         dropped,
		MaxDriftMS:      maxDrift,
	}
	log.Info("assembly complete",
		logging.String("track", trackPath),
		logging.Int64("duration_ms", result.TrackDurationMS),
		logging.Int64("silence_ms", result.SilenceMS),
		logging.Int("placed", result.Placed),
		logging.Int("dropped", result.Dropped),
		logging.Int64("max_drift_ms", result.MaxDriftMS),
	)
	return result, nil
}
