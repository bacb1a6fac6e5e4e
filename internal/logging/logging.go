// Package logging builds the service's base zerolog.Logger from the
// configured level and output file. It provides no request-scoped child
// loggers.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the base logger. If file is empty, logs go to stderr.
func New(level, file string) (zerolog.Logger, error) {
	var out io.Writer = os.Stderr
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, nil
}
