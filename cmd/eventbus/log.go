package main

import (
	"io"
	"os"
	"strings"

	"github.com/eventbus-fabric/eventbus/internal/config"
	"github.com/eventbus-fabric/eventbus/internal/logger"
)

func newLogger(cfg config.LoggingConfig) *logger.StructuredLogger {
	var level logger.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}

	l := logger.NewLogger(logOutput(cfg.Output), level)
	l.SetPrettyPrint(strings.ToLower(cfg.Format) != "json")
	return l
}

func logOutput(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}
