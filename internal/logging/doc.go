// Package logging assembles the structured slog loggers used across the
// dubbing pipeline. It owns the console and JSON handlers, centralizes level
// plumbing, and exposes context-aware helpers so stage code automatically
// tags log lines with run IDs, stages, and segment IDs.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
