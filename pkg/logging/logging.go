// Package logging is the leveled logging seam shared by the library packages.
// Any gommon or echo logger satisfies Logger.
package logging

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// Logger is the subset of the gommon logger the library writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Default returns a gommon logger prefixed "cmdbform" at WARN level.
func Default() *log.Logger {
	logger := log.New("cmdbform")
	logger.SetLevel(log.WARN)
	return logger
}

// New returns a gommon logger writing to w at the named level.
func New(prefix string, w io.Writer, level string) *log.Logger {
	logger := log.New(prefix)
	if w != nil {
		logger.SetOutput(w)
	}
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel maps a config level name to a gommon level. Unknown and empty
// names fall back to WARN.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "info":
		return log.INFO
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.WARN
	}
}

// OrNop returns logger, or a discarding logger when nil.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

type nop struct{}

func (nop) Debugf(string, ...any) {}
func (nop) Infof(string, ...any)  {}
func (nop) Warnf(string, ...any)  {}
func (nop) Errorf(string, ...any) {}
