// Package logrus adapts a logrus entry to pagestate.Logger, so store events
// such as snapshot self-heal land in the host application's logrus output.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/pagestate"
)

var _ pagestate.Logger = LogrusLogger{}

// LogrusLogger writes pagestate events through E.
type LogrusLogger struct{ E *logrus.Entry }

// New tags every event with the store namespace.
func New(l *logrus.Logger, namespace string) LogrusLogger {
	return LogrusLogger{E: l.WithField("namespace", namespace)}
}

func (l LogrusLogger) Debug(msg string, f pagestate.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}

func (l LogrusLogger) Info(msg string, f pagestate.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}

func (l LogrusLogger) Warn(msg string, f pagestate.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}

func (l LogrusLogger) Error(msg string, f pagestate.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
