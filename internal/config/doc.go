// Package config loads, normalizes, and validates the TOML configuration
// that drives the dubbing pipeline: work directories, Azure service
// credentials, voice selection, and stage tuning knobs.
package config
