package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

// Init configures the shared logger exactly once.
func Init(debug bool) *logrus.Logger {
	once.Do(func() {
		base = newLogger(os.Stdout, debug)
	})
	return base
}

func newLogger(out io.Writer, debug bool) *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.InfoLevel
	if debug {
		l.Level = logrus.DebugLevel
	}
	l.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	l.Out = out
	return l
}

// Base returns the shared logger, initializing it with defaults if needed.
func Base() *logrus.Logger {
	return Init(false)
}

// New returns an entry tagged with the given component name.
func New(component string) *logrus.Entry {
	return Base().WithField("component", component)
}
