// Package deps reports the availability of the external tools the dubbing
// pipeline shells out to. Everything else the pipeline needs is reached over
// HTTP, so the list is short.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Requirements returns the pipeline's external tool list. ffmpegBinary is the
// configured extraction binary; blank falls back to "ffmpeg" on PATH.
func Requirements(ffmpegBinary string) []Requirement {
	command := strings.TrimSpace(ffmpegBinary)
	if command == "" {
		command = "ffmpeg"
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     command,
			Description: "extracts mono PCM audio from source recordings",
		},
	}
}

// Check evaluates the requirements against the local system.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		command := strings.TrimSpace(req.Command)
		if command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if path, err := exec.LookPath(command); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", command)
		} else {
			status.Available = true
			status.Detail = path
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the names of required tools that are unavailable.
func Missing(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
