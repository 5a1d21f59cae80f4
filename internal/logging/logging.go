// Package logging configures the process-wide slog logger.
//
// Records go to a size-rotated file so the terminal UI keeps stdout to
// itself. One-shot commands may pass a mirror writer (usually stderr).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kalambet/docchat/internal/config"
)

// ParseLevel maps a config level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a text logger writing to the rotated log file and, when mirror
// is non-nil, to mirror as well. The returned closer releases the file.
func New(cfg config.LogConfig, mirror io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	var w io.Writer = rotator
	if mirror != nil {
		w = io.MultiWriter(rotator, mirror)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger.With("app", "docchat"), rotator, nil
}

// Setup installs the logger from New as the slog default.
func Setup(cfg config.LogConfig, mirror io.Writer) (io.Closer, error) {
	logger, closer, err := New(cfg, mirror)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}
