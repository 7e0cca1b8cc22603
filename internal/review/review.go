// Package review runs the consistency pass over a translation artifact. The
// reviewer sees batches of adjacent segments with both the source text and the
// translation, and may rewrite either side to fix recognition slips and keep
// terminology consistent across segment boundaries. A batch the model cannot
// handle passes through untouched.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/segment"
	"github.com/Vetacher/zoom-translator/internal/services"
	"github.com/Vetacher/zoom-translator/internal/services/openai"
)

// DefaultBatchSize is how many adjacent segments the reviewer sees at once.
const DefaultBatchSize = 10

// Completer produces one chat completion. Satisfied by the openai client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Sleeper pauses between batches.
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

// fix is one reviewer correction. Absent fields mean no change.
type fix struct {
	ID               int     `json:"id"`
	OriginalFixed    *string `json:"original_fixed"`
	TranslationFixed *string `json:"translation_fixed"`
}

// Reviewer is the consistency stage.
type Reviewer struct {
	completer  Completer
	batchSize  int
	batchDelay time.Duration
	sleeper    Sleeper
	logger     *slog.Logger
}

// Option customizes the stage.
type Option func(*Reviewer)

// WithBatchSize overrides the reviewer window size.
func WithBatchSize(n int) Option {
	return func(r *Reviewer) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between batch requests.
func WithBatchDelay(d time.Duration) Option {
	return func(r *Reviewer) {
		if d >= 0 {
			r.batchDelay = d
		}
	}
}

// WithSleeper overrides the inter-batch sleeper.
func WithSleeper(s Sleeper) Option {
	return func(r *Reviewer) {
		if s != nil {
			r.sleeper = s
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reviewer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs the stage.
func New(completer Completer, opts ...Option) *Reviewer {
	r := &Reviewer{
		completer: completer,
		batchSize: DefaultBatchSize,
		sleeper:   defaultSleeper,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reviews one translation artifact and writes the fixed artifact.
// Returns the artifact path.
func (r *Reviewer) Run(ctx context.Context, translationPath string) (string, error) {
	ctx = services.WithStage(ctx, "review")
	log := r.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	artifact, err := segment.LoadTranslation(translationPath)
	if err != nil {
		return "", err
	}

	// Only successfully translated segments go in front of the reviewer;
	// sentinel-marked segments pass through untouched.
	reviewable := make([]*segment.TranslatedSegment, 0, len(artifact.Segments))
	for i := range artifact.Segments {
		if artifact.Segments[i].TranslationStatus == segment.StatusOK {
			reviewable = append(reviewable, &artifact.Segments[i])
		}
	}

	var applied, skippedBatches int
	for start := 0; start < len(reviewable); start += r.batchSize {
		end := start + r.batchSize
		if end > len(reviewable) {
			end = len(reviewable)
		}
		batch := reviewable[start:end]
		if start > 0 && r.batchDelay > 0 {
			if err := r.sleeper(ctx, r.batchDelay); err != nil {
				return "", services.Wrap(services.ErrExternalService, "review", "pace batches", "canceled", err)
			}
		}
		fixes, err := r.reviewBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", services.Wrap(services.ErrExternalService, "review", "review batch", "canceled", err)
			}
			skippedBatches++
			log.Warn("batch passes through unreviewed",
				logging.Int("first_segment", batch[0].ID),
				logging.Int("batch_size", len(batch)),
				logging.Error(err),
			)
			continue
		}
		applied += applyFixes(batch, fixes)
	}

	artifact.Reviewed = true
	outPath := segment.ReviewedPath(translationPath)
	if err := segment.Save(outPath, artifact); err != nil {
		return "", services.Wrap(services.ErrExternalService, "review", "write artifact", outPath, err)
	}
	log.Info("review complete",
		logging.String("artifact", outPath),
		logging.Int("segments", len(artifact.Segments)),
		logging.Int("fixes_applied", applied),
		logging.Int("batches_skipped", skippedBatches),
	)
	return outPath, nil
}

func (r *Reviewer) reviewBatch(ctx context.Context, batch []*segment.TranslatedSegment) ([]fix, error) {
	content, err := r.completer.Complete(ctx, reviewSystemPrompt, buildBatchPrompt(batch))
	if err != nil {
		return nil, err
	}
	var fixes []fix
	if err := openai.DecodeModelJSON(content, &fixes); err != nil {
		return nil, services.Wrap(services.ErrReviewParse, "review", "decode fixes", "", err)
	}
	return fixes, nil
}

const reviewSystemPrompt = `You are reviewing a translated meeting transcript for consistency. You see numbered segments with the speaker, the source text, its translation, and the start time. Fix recognition mistakes in the source that are obvious from surrounding segments, and fix translations that are inconsistent with neighboring segments or with the corrected source.

Respond with a JSON array of corrections. Each correction is an object with "id" and the fields you changed: "original_fixed" and/or "translation_fixed". Segments that need no change must not appear in the array. Respond with the JSON array only.`

func buildBatchPrompt(batch []*segment.TranslatedSegment) string {
	var b strings.Builder
	for _, seg := range batch {
		fmt.Fprintf(&b, "Segment %d:\n", seg.ID)
		fmt.Fprintf(&b, "  speaker: %s\n", seg.Speaker)
		fmt.Fprintf(&b, "  original: %s\n", seg.Original)
		fmt.Fprintf(&b, "  translation: %s\n", seg.Translation)
		fmt.Fprintf(&b, "  time: %.1fs\n", float64(seg.StartMS)/1000)
	}
	return b.String()
}

// applyFixes writes corrections back onto the batch. Fixes naming unknown
// segment IDs or blanking a field are ignored. Returns the applied count.
func applyFixes(batch []*segment.TranslatedSegment, fixes []fix) int {
	byID := make(map[int]*segment.TranslatedSegment, len(batch))
	for _, seg := range batch {
		byID[seg.ID] = seg
	}
	applied := 0
	for _, f := range fixes {
		seg, ok := byID[f.ID]
		if !ok {
			continue
		}
		changed := false
		if f.OriginalFixed != nil {
			if text := strings.TrimSpace(*f.OriginalFixed); text != "" && text != seg.Original {
				seg.Original = text
				seg.OriginalChanged = true
				changed = true
			}
		}
		if f.TranslationFixed != nil {
			if text := strings.TrimSpace(*f.TranslationFixed); text != "" && text != seg.Translation {
				seg.Translation = text
				seg.TranslationChanged = true
				changed = true
			}
		}
		if changed {
			applied++
		}
	}
	return applied
}
