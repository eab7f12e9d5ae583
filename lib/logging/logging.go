// Package logging configures the process-wide logrus logger used by every
// other package in the module.
package logging

import (
	"io"
	"os"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// Purpose distinguishes a daemon (server) logger, which always writes to
// stderr, from a CLI client logger, which stays quiet below debug level.
type Purpose int

const (
	ForDaemon Purpose = iota
	ForCLI
)

// Init configures the standard logrus logger for the given purpose and
// level name ("debug", "info", "warn", "error").
func Init(purpose Purpose, levelName string) error {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return trace.BadParameter("invalid log level %q: %v", levelName, err)
	}

	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch purpose {
	case ForCLI:
		if level == logrus.DebugLevel {
			logrus.SetOutput(os.Stderr)
		} else {
			logrus.SetOutput(io.Discard)
		}
	case ForDaemon:
		logrus.SetOutput(os.Stderr)
	}
	return nil
}

// NewEntry returns a logger scoped to a named component.
func NewEntry(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
