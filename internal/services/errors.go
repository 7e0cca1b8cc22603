package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTranscription marks fatal speech-to-text session failures. A stage
	// hitting this error produces no partial artifact.
	ErrTranscription = errors.New("transcription error")
	// ErrContentFiltered marks a translation rejected by the provider's
	// content policy. Distinct from ErrExternalService so the segment can be
	// sentinel-marked instead of treated as a generic failure.
	ErrContentFiltered = errors.New("content filtered")
	// ErrReviewParse marks a review batch whose model response could not be
	// decoded. The batch passes through unmodified.
	ErrReviewParse = errors.New("review parse error")
	// ErrSynthesis marks a per-segment text-to-speech failure. The segment is
	// dropped from the output track.
	ErrSynthesis = errors.New("synthesis error")
	// ErrArtifactNotFound marks a missing stage input artifact. The
	// orchestrator refuses to start the stage.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrExternalService marks generic collaborator failures.
	ErrExternalService = errors.New("external service error")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks invalid stage inputs.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StageFatal reports whether an error should abort the whole stage rather
// than a single segment or batch.
func StageFatal(err error) bool {
	switch {
	case errors.Is(err, ErrTranscription),
		errors.Is(err, ErrArtifactNotFound),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrValidation):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
