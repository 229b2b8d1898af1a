package avespeed

import "log"

var pkgLogger Logger = log.Default()

// Logger is the minimal logging interface used by the package. Both
// *log.Logger and the loggers returned by slog.NewLogLogger satisfy it.
type Logger interface {
	Printf(format string, v ...any)
}

// SetLogger replaces the package logger. Passing nil restores log.Default().
func SetLogger(logger Logger) {
	if logger == nil {
		logger = log.Default()
	}
	pkgLogger = logger
}
