package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the shared logger type used across every package; it is a thin
// alias so call sites don't need to import charmbracelet/log directly.
type Logger = *log.Logger

var global = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
})

// Global returns the process-wide logger, configured with whatever prefix
// and level New/SetLevel have been called with.
func Global() Logger {
	return global
}

// SetLevel adjusts the global logger's verbosity.
func SetLevel(level log.Level) {
	global.SetLevel(level)
}

// Named returns a child logger tagged with a component name, so each
// subsystem prefixes its own log lines.
func Named(component string) Logger {
	return global.WithPrefix(component)
}
