package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Extractor turns video files into the mono PCM audio the speech recognizer
// expects, by shelling out to ffmpeg.
type Extractor struct {
	binary        string
	sampleRate    int
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor builds an Extractor. An empty binary falls back to "ffmpeg"
// on PATH.
func NewExtractor(binary string, sampleRate int) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Extractor{binary: binary, sampleRate: sampleRate}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// ExtractAudio extracts the audio stream from source into a mono PCM WAV
// file at dest.
func (e *Extractor) ExtractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	if e.commandRunner != nil {
		return e.commandRunner(ctx, e.binary, args...)
	}
	cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
