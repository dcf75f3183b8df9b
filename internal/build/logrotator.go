package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	defaultMaxLogFiles    = 10
	defaultMaxLogFileSize = 20 // MB
)

// RotatorConfig describes a rotating log file.
type RotatorConfig struct {
	// LogFile is the full path of the active log file.
	LogFile string

	// MaxFiles is how many rotated files to keep; 0 takes the default.
	MaxFiles int

	// MaxFileSizeMB rotates the file once it exceeds this size; 0 takes
	// the default.
	MaxFileSizeMB int
}

// RotatingLogWriter is an io.WriteCloser that feeds a size-bounded,
// gzip-compressing file rotator.
type RotatingLogWriter struct {
	pipe *io.PipeWriter
	rot  *rotator.Rotator
}

// NewRotatingLogWriter opens the log file and starts the rotator
// goroutine. The writer is usable immediately.
func NewRotatingLogWriter(cfg RotatorConfig) (*RotatingLogWriter, error) {
	maxFiles := cfg.MaxFiles
	if maxFiles == 0 {
		maxFiles = defaultMaxLogFiles
	}
	maxSizeMB := cfg.MaxFileSizeMB
	if maxSizeMB == 0 {
		maxSizeMB = defaultMaxLogFileSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	// The rotator takes its threshold in KB.
	rot, err := rotator.New(
		cfg.LogFile, int64(maxSizeMB*1024), false, maxFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	go func() {
		// The rotator is the log destination, so its own failures can
		// only go to stderr.
		if err := rot.Run(pr); err != nil {
			fmt.Fprintf(os.Stderr, "log rotator stopped: %v\n",
				err)
		}
	}()

	return &RotatingLogWriter{pipe: pw, rot: rot}, nil
}

// Write implements io.Writer.
func (w *RotatingLogWriter) Write(p []byte) (int, error) {
	return w.pipe.Write(p)
}

// Close flushes the pipe and stops the rotator goroutine.
func (w *RotatingLogWriter) Close() error {
	return w.pipe.Close()
}
