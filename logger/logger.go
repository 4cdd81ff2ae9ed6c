package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrUnsupportedFormat = errors.New("unsupported log format")

// New builds a zerolog logger for the given level and format ("json" or "console") and installs it as the
// package-level logger used through zerolog/log.
func New(level, format string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(out io.Writer, level, format string) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logger zerolog.Logger

	switch strings.ToLower(format) {
	case "", "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	case "json":
		logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, ErrUnsupportedFormat
	}

	zerolog.SetGlobalLevel(lvl)

	logger = logger.Level(lvl)
	log.Logger = logger

	return logger, nil
}
