// Package telemetry is contender's logging entry point: debug-gated
// verbose logging (CONTENDER_DEBUG) on top of structured logrus output.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-level structured logger. Components accept it as a
// dependency or fall back to this default.
var Log = logrus.New()

var debugEnabled = os.Getenv("CONTENDER_DEBUG") == "1"

func init() {
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debugEnabled {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// Debugf logs only when CONTENDER_DEBUG=1 is set.
func Debugf(format string, args ...any) {
	if debugEnabled {
		Log.Debugf(format, args...)
	}
}

// WithFields is a convenience wrapper over the default logger.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
