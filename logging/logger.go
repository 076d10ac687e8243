package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger instances provide custom logging.
type Logger interface {

	// Log with level ERROR
	Error(...interface{})

	// Log formatted messages with level ERROR
	Errorf(string, ...interface{})

	// Log with level WARN
	Warn(...interface{})

	// Log formatted messages with level WARN
	Warnf(string, ...interface{})

	// Log with level INFO
	Info(...interface{})

	// Log formatted messages with level INFO
	Infof(string, ...interface{})

	// Log with level DEBUG
	Debug(...interface{})

	// Log formatted messages with level DEBUG
	Debugf(string, ...interface{})

	// WithFields returns a logger that adds the fields to every entry.
	WithFields(map[string]interface{}) Logger
}

// DefaultLog implements Logger with the standard logrus logger.
type DefaultLog struct {
	entry *logrus.Entry
}

// New creates a logger writing to the standard logrus logger.
func New() *DefaultLog {
	return &DefaultLog{entry: logrus.NewEntry(logrus.StandardLogger())}
}

func (dl *DefaultLog) Error(a ...interface{})            { dl.entry.Error(a...) }
func (dl *DefaultLog) Errorf(f string, a ...interface{}) { dl.entry.Errorf(f, a...) }
func (dl *DefaultLog) Warn(a ...interface{})             { dl.entry.Warn(a...) }
func (dl *DefaultLog) Warnf(f string, a ...interface{})  { dl.entry.Warnf(f, a...) }
func (dl *DefaultLog) Info(a ...interface{})             { dl.entry.Info(a...) }
func (dl *DefaultLog) Infof(f string, a ...interface{})  { dl.entry.Infof(f, a...) }
func (dl *DefaultLog) Debug(a ...interface{})            { dl.entry.Debug(a...) }
func (dl *DefaultLog) Debugf(f string, a ...interface{}) { dl.entry.Debugf(f, a...) }

func (dl *DefaultLog) WithFields(fields map[string]interface{}) Logger {
	return &DefaultLog{entry: dl.entry.WithFields(fields)}
}

// NewWithLogger creates a logger writing to l.
func NewWithLogger(l *logrus.Logger) *DefaultLog {
	return &DefaultLog{entry: logrus.NewEntry(l)}
}
