package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type prefixFormatter struct {
	prefix    string
	formatter logrus.Formatter
}

// Options of the logging initialization.
type Options struct {

	// Prefix for application log entries. Primarily used to be
	// able to select between access log and application log
	// entries.
	ApplicationLogPrefix string

	// Output for the application log entries, when nil,
	// os.Stderr is used.
	ApplicationLogOutput io.Writer

	// Level of the application log, logrus.InfoLevel by default.
	ApplicationLogLevel logrus.Level

	// When set, the application log is printed in JSON format.
	ApplicationLogJSONEnabled bool

	// Output for the access log entries, when nil, os.Stderr is
	// used.
	AccessLogOutput io.Writer

	// When set, no access log is printed.
	AccessLogDisabled bool

	// When set, the access log is printed in JSON format.
	AccessLogJSONEnabled bool
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}

	return append([]byte(f.prefix), b...), nil
}

func initApplicationLog(o Options) {
	var formatter logrus.Formatter = &logrus.TextFormatter{}
	if o.ApplicationLogJSONEnabled {
		formatter = &logrus.JSONFormatter{}
	}

	if o.ApplicationLogPrefix != "" {
		formatter = &prefixFormatter{o.ApplicationLogPrefix, formatter}
	}

	logrus.SetFormatter(formatter)

	if o.ApplicationLogOutput != nil {
		logrus.SetOutput(o.ApplicationLogOutput)
	} else {
		logrus.SetOutput(os.Stderr)
	}

	level := o.ApplicationLogLevel
	if level == logrus.PanicLevel {
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
}

func initAccessLog(o Options) {
	l := logrus.New()
	if o.AccessLogJSONEnabled {
		l.Formatter = &logrus.JSONFormatter{TimestampFormat: dateFormat, DisableTimestamp: true}
	} else {
		l.Formatter = accessLogFormatter{}
	}

	l.Out = o.AccessLogOutput
	if l.Out == nil {
		l.Out = os.Stderr
	}

	l.Level = logrus.InfoLevel
	accessLog = l
}

// Init initializes the application log and the access log.
func Init(o Options) {
	initApplicationLog(o)

	if o.AccessLogDisabled {
		accessLog = nil
		return
	}

	initAccessLog(o)
}
