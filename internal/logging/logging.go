// Package logging constructs the process-wide zerolog.Logger and the small
// set of conventions workers use to log at tick boundaries.
//
// Grounded on other_examples/.../rsssync-service.go and
// .../reannounce-service.go, both of which thread a single *zerolog.Logger
// into every service and log structured fields (title, gameId, indexer)
// rather than formatted strings.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. In dev mode (pretty=true) it uses zerolog's
// console writer, mirroring the teacher's //go:build dev / !dev config
// split for "something that looks different locally than in prod".
func New(pretty bool, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var w zerolog.ConsoleWriter
	if pretty {
		w = zerolog.NewConsoleWriter()
		w.Out = os.Stdout
		w.TimeFormat = time.Kitchen
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
