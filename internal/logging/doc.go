// Package logging assembles the structured slog loggers used across shelfsync.
//
// It owns the console and JSON handlers, resolves the "auto" format against
// the attached terminal, and tees every line into the run log file under the
// configured log directory. Context helpers tag lines with the run id, target
// and record id carried by services context values, and WarnWithContext /
// ErrorWithContext enforce the event_type, error_hint and impact fields every
// warning should carry.
package logging
