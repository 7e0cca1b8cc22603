// Package segment defines the entities that flow between pipeline stages and
// the versioned JSON artifacts each stage reads and writes.
package segment

import (
	"fmt"
	"strings"
)

// Gender buckets a speaker into one of the two synthesis voices. The value
// comes from a coarse alternation heuristic, not acoustic classification.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// TranslationStatus records how a segment fared in the translation stage.
type TranslationStatus string

const (
	// StatusOK means the segment carries a usable translation.
	StatusOK TranslationStatus = "ok"
	// StatusContentFiltered means the provider's content policy rejected the
	// segment. The translation holds a sentinel for audit and the segment is
	// excluded from synthesis.
	StatusContentFiltered TranslationStatus = "content_filtered"
	// StatusError means translation failed for any other reason. Sentinel
	// translation, excluded from synthesis, pipeline continues.
	StatusError TranslationStatus = "error"
)

// Sentinel translations used for audit when a segment cannot be translated.
const (
	FilteredSentinelPrefix = "[FILTERED] "
	ErrorSentinel          = "[TRANSLATION ERROR]"
)

// Word carries word-level timing inside a transcript segment.
type Word struct {
	Text     string `json:"text"`
	OffsetMS int64  `json:"offset_ms"`
}

// TranscriptSegment is one finalized utterance from the speech recognizer.
type TranscriptSegment struct {
	ID         int     `json:"segment_id"`
	Speaker    string  `json:"speaker"`
	Gender     Gender  `json:"gender"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	DurationMS int64   `json:"duration_ms"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words,omitempty"`
}

// TranslatedSegment is a transcript segment decorated by the translation and
// review stages. The transcript text is renamed to "original" once a
// translation exists alongside it.
type TranslatedSegment struct {
	ID         int     `json:"segment_id"`
	Speaker    string  `json:"speaker"`
	Gender     Gender  `json:"gender"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	DurationMS int64   `json:"duration_ms"`
	Confidence float64 `json:"confidence"`

	Original          string            `json:"original"`
	Translation       string            `json:"translation"`
	TranslationStatus TranslationStatus `json:"translation_status"`

	// Review audit flags; set only when the consistency reviewer rewrote the
	// corresponding field.
	OriginalChanged    bool `json:"original_changed,omitempty"`
	TranslationChanged bool `json:"translation_changed,omitempty"`
}

// Synthesizable reports whether the segment should reach the assembly engine.
func (s TranslatedSegment) Synthesizable() bool {
	return s.TranslationStatus == StatusOK && strings.TrimSpace(s.Translation) != ""
}

// Placement records where one synthesized clip landed on the output track.
type Placement struct {
	SegmentID             int   `json:"segment_id"`
	SynthesizedDurationMS int64 `json:"synthesized_duration_ms"`
	PlacedStartMS         int64 `json:"placed_start_ms"`
	PlacedEndMS           int64 `json:"placed_end_ms"`
	// DriftMS is placed end minus the segment's original end. Positive means
	// the track is running long, negative means ahead of schedule.
	DriftMS int64 `json:"drift_ms"`
}

// ValidateTranscriptOrder checks the stage-1 output invariant: segment IDs
// are unique and strictly increasing in start_ms order.
func ValidateTranscriptOrder(segments []TranscriptSegment) error {
	for i := 1; i < len(segments); i++ {
		prev, cur := segments[i-1], segments[i]
		if cur.ID <= prev.ID {
			return fmt.Errorf("segment %d: id %d not greater than predecessor %d", i+1, cur.ID, prev.ID)
		}
		if cur.StartMS < prev.StartMS {
			return fmt.Errorf("segment %d: start %dms precedes predecessor start %dms", cur.ID, cur.StartMS, prev.StartMS)
		}
	}
	return nil
}

// ValidatePlacementOrder checks the assembly output invariant: placed starts
// are non-decreasing and each placement begins at or after the previous
// placement's end.
func ValidatePlacementOrder(placements []Placement) error {
	for i := 1; i < len(placements); i++ {
		prev, cur := placements[i-1], placements[i]
		if cur.PlacedStartMS < prev.PlacedStartMS {
			return fmt.Errorf("placement %d: start %dms precedes predecessor start %dms", cur.SegmentID, cur.PlacedStartMS, prev.PlacedStartMS)
		}
		if cur.PlacedStartMS < prev.PlacedEndMS {
			return fmt.Errorf("placement %d: start %dms overlaps predecessor end %dms", cur.SegmentID, cur.PlacedStartMS, prev.PlacedEndMS)
		}
	}
	return nil
}
