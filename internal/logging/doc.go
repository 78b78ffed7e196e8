// Package logging assembles structured slog loggers used across scholardigest.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes helpers so stage code tags log lines with the run ID,
// stage, and component. WarnWithContext and ErrorWithContext enforce the
// event_type and error_hint fields on problems worth a second look. A no-op
// logger is available for tests and wiring code that cannot fail.
package logging
