package logger_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/chronotope/pkg/logger"
)

func TestColorHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&buf, slog.LevelInfo)

	log.Debug("hidden")
	log.Info("processing chunk", "chunk", 2)
	log.Warn("geocoding slow")
	log.Error("graph write failed", "error", "timeout")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "processing chunk")
	assert.Contains(t, out, "chunk=2")
	assert.Contains(t, out, "\033[33m")
	assert.Contains(t, out, "\033[31m")
}

func TestColorHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&buf, slog.LevelInfo).With("component", "pipeline")

	log.Info("sentence done")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "component=pipeline")
	assert.Contains(t, line, "sentence done")
}

func TestColorHandlerGreenForPersistence(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&buf, slog.LevelInfo)

	log.Info("Persisting hyperedges to database", "count", 3)

	assert.Contains(t, buf.String(), "\033[32m")
}

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("This is a debug message")
	log.Info("This is an info message")
	log.Info("Persisting hyperedges to database") // Will be green in terminal
	log.Warn("This is a warning message")         // Will be yellow in terminal
	log.Error("This is an error message")         // Will be red in terminal
}
