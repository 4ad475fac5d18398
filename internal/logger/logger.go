// Package logger builds the logrus logger shared by the simulation, the
// journal, the API and the gardener.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger at the given level ("debug", "info", ...). Format
// "json" selects the JSON formatter; anything else gets timestamped text.
// An unparsable level falls back to info.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(level, format, os.Stdout)
}

// NewWithOutput is New writing to out instead of stdout.
func NewWithOutput(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return log
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT, overriding the supplied defaults.
func FromEnv(defaultLevel, defaultFormat string) *logrus.Logger {
	level := defaultLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = v
	}
	format := defaultFormat
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		format = v
	}
	return New(level, format)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
