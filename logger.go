package simidx

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/engine"
)

// Logger wraps slog.Logger with simidx-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRunID tags all subsequent records with the run's identifier.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID),
	}
}

// LogRunStart logs the routing decision at the start of a run.
func (l *Logger) LogRunStart(ctx context.Context, mode engine.Mode, entities, deltaSize int) {
	l.InfoContext(ctx, "run started",
		"mode", mode.String(),
		"entities", entities,
		"delta_size", deltaSize,
	)
}

// LogRunComplete logs the outcome of a run.
func (l *Logger) LogRunComplete(ctx context.Context, res *RunResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "run failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "run completed",
		"mode", res.Mode.String(),
		"touched", res.EntitiesTouched,
		"edges_written", res.EdgesWritten,
		"duration", res.Duration,
	)
}

// LogCorpus logs per-feature corpus health, noting rows without a usable
// vector.
func (l *Logger) LogCorpus(ctx context.Context, c *corpus.Corpus) {
	for i, name := range c.Features() {
		m := c.Matrix(i)
		invalid := c.Size() - m.ValidCount()
		if invalid > 0 {
			l.DebugContext(ctx, "feature has invalid vectors",
				"feature", name,
				"valid", m.ValidCount(),
				"invalid", invalid,
			)
		}
	}
}

// LogGuardrail logs the hub guardrail delegating an incremental run to a
// full rebuild.
func (l *Logger) LogGuardrail(ctx context.Context, affected, threshold int) {
	l.WarnContext(ctx, "impact set exceeds guardrail, delegating to full rebuild",
		"affected", affected,
		"threshold", threshold,
	)
}

// LogProgress logs a throttled progress update.
func (l *Logger) LogProgress(ctx context.Context, phase engine.Phase, processed, total int) {
	l.DebugContext(ctx, "progress",
		"phase", phase.String(),
		"processed", processed,
		"total", total,
	)
}

// LogWrite logs the final store transaction.
func (l *Logger) LogWrite(ctx context.Context, edges int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index write failed",
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "index write completed",
		"edges", edges,
		"duration", duration,
	)
}
