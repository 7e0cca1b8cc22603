package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Vetacher/zoom-translator/internal/services"
)

// SchemaVersion tags every artifact so schema drift between stages is caught
// at parse time instead of deep inside a later stage.
const SchemaVersion = 1

// TranscriptionArtifact is the stage-2 output document.
type TranscriptionArtifact struct {
	SchemaVersion int                 `json:"schema_version"`
	AudioFile     string              `json:"audio_file"`
	Language      string              `json:"language"`
	TotalSegments int                 `json:"total_segments"`
	Speakers      map[string]Gender   `json:"speakers"`
	GlossaryTerms int                 `json:"glossary_terms"`
	Segments      []TranscriptSegment `json:"segments"`
}

// TranslationArtifact is the stage-3 output document; stage 3.5 rewrites it
// in place (to a new file) with Reviewed set.
type TranslationArtifact struct {
	SchemaVersion  int                 `json:"schema_version"`
	AudioFile      string              `json:"audio_file"`
	SourceLanguage string              `json:"source_language"`
	TargetLanguage string              `json:"target_language"`
	TotalSegments  int                 `json:"total_segments"`
	Speakers       map[string]Gender   `json:"speakers"`
	GlossaryTerms  int                 `json:"glossary_terms"`
	Reviewed       bool                `json:"reviewed"`
	Segments       []TranslatedSegment `json:"segments"`
}

// PlacementArtifact is the stage-4 placement list written alongside the
// exported audio track.
type PlacementArtifact struct {
	SchemaVersion   int         `json:"schema_version"`
	TrackFile       string      `json:"track_file"`
	TrackDurationMS int64       `json:"track_duration_ms"`
	SilenceMS       int64       `json:"silence_ms"`
	Placements      []Placement `json:"placements"`
}

// LoadTranscription reads and verifies a stage-2 artifact.
func LoadTranscription(path string) (*TranscriptionArtifact, error) {
	var artifact TranscriptionArtifact
	if err := readArtifact(path, &artifact); err != nil {
		return nil, err
	}
	if artifact.SchemaVersion != SchemaVersion {
		return nil, schemaMismatch(path, artifact.SchemaVersion)
	}
	return &artifact, nil
}

// LoadTranslation reads and verifies a stage-3 or stage-3.5 artifact.
func LoadTranslation(path string) (*TranslationArtifact, error) {
	var artifact TranslationArtifact
	if err := readArtifact(path, &artifact); err != nil {
		return nil, err
	}
	if artifact.SchemaVersion != SchemaVersion {
		return nil, schemaMismatch(path, artifact.SchemaVersion)
	}
	return &artifact, nil
}

// LoadPlacements reads and verifies a stage-4 placement artifact.
func LoadPlacements(path string) (*PlacementArtifact, error) {
	var artifact PlacementArtifact
	if err := readArtifact(path, &artifact); err != nil {
		return nil, err
	}
	if artifact.SchemaVersion != SchemaVersion {
		return nil, schemaMismatch(path, artifact.SchemaVersion)
	}
	return &artifact, nil
}

// Save writes an artifact atomically: full write to a temp file in the same
// directory, then rename. A stage that dies mid-write leaves no partial
// artifact behind.
func Save(path string, artifact any) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize artifact: %w", err)
	}
	return nil
}

func readArtifact(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrArtifactNotFound, "", "open artifact", path, nil)
		}
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return nil
}

func schemaMismatch(path string, got int) error {
	return services.Wrap(
		services.ErrValidation,
		"",
		"verify artifact schema",
		fmt.Sprintf("%s: schema version %d, expected %d", path, got, SchemaVersion),
		nil,
	)
}
