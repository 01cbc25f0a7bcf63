// Package rtclog provides the structured logger shared by the lifecycle,
// transport, and RPC layers, built on logrus so field-keyed log lines are
// consistent regardless of which component emits them.
package rtclog

import (
	"os"

	"github.com/rtwire/go-client/internal/rtcdebug"
	"github.com/sirupsen/logrus"
)

// Logger is the shared structured-logging entry point. It embeds
// *logrus.Logger so callers can use the familiar WithField/WithError chain.
type Logger struct {
	*logrus.Logger
}

var std = New()

// New constructs a Logger writing JSON lines to stderr. Level defaults to
// Info, or Debug when RTWIREDEBUG=logdebug=1 is set, so a developer chasing a
// connection issue can get verbose output without touching application
// code.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	if rtcdebug.Enabled("logdebug") {
		l.SetLevel(logrus.DebugLevel)
	}
	return &Logger{Logger: l}
}

// Default returns the package-level Logger used when a component is not
// given an explicit one.
func Default() *Logger { return std }

// SetLevel adjusts the default logger's verbosity, e.g. from RTWIREDEBUG.
func SetLevel(level logrus.Level) { std.SetLevel(level) }
