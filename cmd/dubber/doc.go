// Command dubber drives the offline dubbing pipeline: audio extraction,
// transcription with diarization, terminology-constrained translation,
// cross-segment review, and assembly of the dubbed audio track. Each stage is
// also exposed as its own subcommand so a failed run can be resumed from the
// stage that failed.
package main
