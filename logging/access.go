package logging

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// The access log lines have the Apache combined log format, followed by
// the duration in milliseconds, the requested host, the route name and
// the request ID:
//
//	host - - [date] "method uri protocol" status size "referer" "user_agent" duration requested_host route request_id
const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	accessLogFormat = `%s - - [%s] "%s %s %s" %d %d "%s" "%s" %d %s %s %s` + "\n"
)

// order of the values in accessLogFormat
var accessLogKeys = []string{
	"host", "timestamp", "method", "uri", "proto",
	"status", "response-size", "referer", "user-agent",
	"duration", "requested-host", "route", "request-id",
}

type accessLogFormatter struct{}

// AccessEntry is a single access log entry.
type AccessEntry struct {

	// The client request.
	Request *http.Request

	// The status code of the response.
	StatusCode int

	// The size of the response in bytes.
	ResponseSize int64

	// The time spent processing request.
	Duration time.Duration

	// The time that the request was received.
	RequestTime time.Time

	// The name of the matched route, if any.
	Route string

	// The ID of the request.
	RequestID string
}

type accessEntryKey struct{}

var accessLog *logrus.Logger

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// clientHost returns the first address of X-Forwarded-For, or the remote
// address, without the port.
func clientHost(r *http.Request) string {
	a, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	a = strings.TrimSpace(a)
	if a == "" {
		a = r.RemoteAddr
	}

	if h, _, err := net.SplitHostPort(a); err == nil {
		a = h
	}

	return orDash(a)
}

func (accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	values := make([]any, len(accessLogKeys))
	for i, k := range accessLogKeys {
		values[i] = e.Data[k]
	}

	return fmt.Appendf(nil, accessLogFormat, values...), nil
}

func (e *AccessEntry) fields() logrus.Fields {
	f := logrus.Fields{
		"timestamp":     e.RequestTime.Format(dateFormat),
		"host":          "-",
		"status":        e.StatusCode,
		"response-size": e.ResponseSize,
		"duration":      e.Duration.Milliseconds(),
		"route":         orDash(e.Route),
		"request-id":    orDash(e.RequestID),
	}

	r := e.Request
	if r == nil {
		for _, k := range []string{"method", "uri", "proto", "referer", "user-agent", "requested-host"} {
			f[k] = ""
		}

		return f
	}

	f["host"] = clientHost(r)
	f["method"] = r.Method
	f["uri"] = r.RequestURI
	f["proto"] = r.Proto
	f["referer"] = r.Referer()
	f["user-agent"] = r.UserAgent()
	f["requested-host"] = r.Host
	return f
}

// WithAccessEntry returns a context carrying the access log entry of the
// request being served.
func WithAccessEntry(ctx context.Context, e *AccessEntry) context.Context {
	return context.WithValue(ctx, accessEntryKey{}, e)
}

// AccessEntryFrom returns the access log entry of the request being
// served by the handler created with NewHandler, or nil.
func AccessEntryFrom(ctx context.Context) *AccessEntry {
	e, _ := ctx.Value(accessEntryKey{}).(*AccessEntry)
	return e
}

// LogAccess writes the entry to the access log, unless the access log is
// disabled.
func LogAccess(entry *AccessEntry) {
	if accessLog == nil || entry == nil {
		return
	}

	accessLog.WithFields(entry.fields()).Infoln()
}
