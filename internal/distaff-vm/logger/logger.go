// Package logger provides a configurable zerolog logger shared by the
// prover and verifier pipelines.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger = zerolog.New(output).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Logger returns the configured logger.
func Logger() zerolog.Logger {
	return logger
}

// SetOutput changes the writer the logger emits to.
func SetOutput(w io.Writer) {
	logger = logger.Output(w)
}

// SetLevel changes the minimum level that will be emitted.
func SetLevel(level zerolog.Level) {
	logger = logger.Level(level)
}

// Disable suppresses all log output; tests use this to keep output clean.
func Disable() {
	logger = zerolog.Nop()
}
