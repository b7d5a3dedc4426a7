// Package observability provides production-grade observability features
// for diagflow: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds diagflow context to a logger.
// Returns a new logger with session_id and engine fields.
func EnrichLogger(logger *slog.Logger, sessionID, engine string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("engine", engine),
	)
}

// LogRenderStart logs the start of a render request.
func LogRenderStart(logger *slog.Logger, engine string, version uint64, sourceLen int) {
	if logger == nil {
		return
	}
	logger.Debug("render starting",
		slog.String("engine", engine),
		slog.Uint64("version", version),
		slog.Int("source_len", sourceLen),
	)
}

// LogRenderComplete logs a published render result.
func LogRenderComplete(logger *slog.Logger, engine string, version uint64, durationMs float64, artifactLen int) {
	if logger == nil {
		return
	}
	logger.Debug("render completed",
		slog.String("engine", engine),
		slog.Uint64("version", version),
		slog.Float64("duration_ms", durationMs),
		slog.Int("artifact_len", artifactLen),
	)
}

// LogRenderError logs a published render failure.
func LogRenderError(logger *slog.Logger, engine string, version uint64, err error) {
	if logger == nil {
		return
	}
	logger.Error("render failed",
		slog.String("engine", engine),
		slog.Uint64("version", version),
		slog.String("error", err.Error()),
	)
}

// LogRenderStale logs a render response discarded by the staleness guard.
// Stale responses are not errors; they are logged at debug level only.
func LogRenderStale(logger *slog.Logger, engine string, version, latest uint64) {
	if logger == nil {
		return
	}
	logger.Debug("render response stale, discarded",
		slog.String("engine", engine),
		slog.Uint64("version", version),
		slog.Uint64("latest", latest),
	)
}

// LogRenderSkipped logs a render call skipped by the de-duplication check.
func LogRenderSkipped(logger *slog.Logger, engine string, sourceLen int) {
	if logger == nil {
		return
	}
	logger.Debug("render skipped, source unchanged",
		slog.String("engine", engine),
		slog.Int("source_len", sourceLen),
	)
}

// LogSessionSaved logs a successful session save.
func LogSessionSaved(logger *slog.Logger, sessionID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("session saved",
		slog.String("session_id", sessionID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSessionSaveError logs a session save failure (recoverable).
func LogSessionSaveError(logger *slog.Logger, sessionID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("session save failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// LogSessionSwitched logs an active-session change.
func LogSessionSwitched(logger *slog.Logger, fromID, toID string) {
	if logger == nil {
		return
	}
	logger.Info("session switched",
		slog.String("from", fromID),
		slog.String("to", toID),
	)
}

// LogSessionRestoreError logs a storage read failure during startup.
// Restore failures degrade to a fresh session; they are warnings, not errors.
func LogSessionRestoreError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("session restore failed, starting fresh",
		slog.String("error", err.Error()),
	)
}

// LogDraftSaved logs a best-effort draft snapshot.
func LogDraftSaved(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Debug("draft saved",
		slog.String("session_id", sessionID),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
