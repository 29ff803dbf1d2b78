// Package logging wires structured logging the way the teacher does:
// log/slog writing to a rotating file via lumberjack, so a long-running
// watch process doesn't grow its log file without bound.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dabstractor/jin/internal/config"
)

// New builds the process-wide logger. Output goes to both stderr (for
// interactive use) and a rotating file under the control directory.
func New(cfg *config.Config) *slog.Logger {
	rotator := &lumberjack.Logger{
		Filename:   cfg.JinDir + "/logs/jin.log",
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	w := io.MultiWriter(os.Stderr, rotator)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}
