// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lootsift/lootsift/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the default slog logger according to configuration. When a
// log file is configured output is rotated with lumberjack, otherwise logs
// go to stdout.
func Setup(cfg config.LogConfig) {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
