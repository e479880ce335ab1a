// Package cli implements the domainstack command line.
//
// Commands:
//   - compose: sample a description and write the placement of every layer
//   - pick: compose with an interactively chosen reference layer
//   - scene: grow a persisted scene run by run
//   - serve: answer compose requests over HTTP
//   - cache: inspect and clear the sample cache
//
// Diagnostics go to stderr through a charmbracelet logger; exports and
// tables go to stdout. --verbose lowers the level to debug and routes
// pipeline and cache events into the log.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Log levels accepted by New and SetLogLevel.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// timed starts a clock and returns a func that logs msg at info level with
// the elapsed time and any extra key/value pairs.
func timed(l *log.Logger, msg string) func(keyvals ...any) {
	start := time.Now()
	return func(keyvals ...any) {
		l.Info(msg, append(keyvals, "duration", time.Since(start).Round(time.Millisecond))...)
	}
}
