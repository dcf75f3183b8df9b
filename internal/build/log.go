// Package build wires the daemon's logging: a console stream plus an
// optional rotating, gzip-compressed log file, both behind a single
// slog.Logger.
package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// DefaultLogFilename is the on-disk log file name.
const DefaultLogFilename = "spindexd.log"

// LogConfig controls where and how verbosely the daemon logs.
type LogConfig struct {
	// LogDir enables file logging when non-empty.
	LogDir string

	// DebugLevel is the filter level name ("trace" through "critical").
	// Unknown names fall back to info.
	DebugLevel string

	// MaxLogFiles and MaxLogFileSizeMB bound the rotated file set.
	// Zero values take the rotator defaults.
	MaxLogFiles      int
	MaxLogFileSizeMB int
}

// NewLogger builds the root logger. The returned cleanup flushes and
// closes the file stream; it is safe to call when file logging is off.
func NewLogger(cfg LogConfig) (*slog.Logger, func(), error) {
	level, ok := btclog.LevelFromString(cfg.DebugLevel)
	if !ok {
		level = btclog.LevelInfo
	}

	console := btclogv2.NewDefaultHandler(os.Stdout)
	console.SetLevel(level)

	handlers := []slog.Handler{console}
	cleanup := func() {}

	if cfg.LogDir != "" {
		rot, err := NewRotatingLogWriter(RotatorConfig{
			LogFile:       filepath.Join(cfg.LogDir, DefaultLogFilename),
			MaxFiles:      cfg.MaxLogFiles,
			MaxFileSizeMB: cfg.MaxLogFileSizeMB,
		})
		if err != nil {
			return nil, nil, err
		}

		file := btclogv2.NewDefaultHandler(
			rot, btclogv2.WithNoTimestamp(),
		)
		file.SetLevel(level)

		handlers = append(handlers, file)
		cleanup = func() { _ = rot.Close() }
	}

	return slog.New(&fanout{handlers: handlers}), cleanup, nil
}

// fanout dispatches each record to every underlying handler. Used to
// drive the console and file streams from one logger.
type fanout struct {
	handlers []slog.Handler
}

// Enabled implements slog.Handler. A record is handled if any stream
// wants it; Handle re-checks per stream.
func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle implements slog.Handler.
func (f *fanout) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// WithAttrs implements slog.Handler.
func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}

	return &fanout{handlers: next}
}

// WithGroup implements slog.Handler.
func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}

	return &fanout{handlers: next}
}

var _ slog.Handler = (*fanout)(nil)
