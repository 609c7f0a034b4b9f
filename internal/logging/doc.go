// Package logging assembles the structured slog loggers used across appshell.
//
// It owns handler construction (console text or JSON, chosen automatically
// when stdout is not a terminal), level parsing, optional file output, and a
// small set of attribute helpers and field names so the transcription,
// chat, and web components emit log lines with the same shape.
package logging
