// Package logging builds the prefixed loggers used across the daemon.
//
// Every subsystem logs through a standard *log.Logger with a bracketed
// prefix ("[sync] ", "[queue] ", ...). By default output goes to
// stderr; configuring a log file adds a size-rotated sink alongside it.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var sink io.Writer = os.Stderr

// SetFile routes all subsequently created loggers to a rotating file in
// addition to stderr. maxSizeMB and maxBackups follow lumberjack
// semantics; zero values fall back to its defaults.
func SetFile(path string, maxSizeMB, maxBackups int) {
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	sink = io.MultiWriter(os.Stderr, rotating)
}

// New returns a logger with the given subsystem prefix, e.g.
// New("sync") logs as "[sync] ".
func New(subsystem string) *log.Logger {
	return log.New(sink, "["+subsystem+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything. Test and --quiet use.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
