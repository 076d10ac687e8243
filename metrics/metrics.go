package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind selects the metrics backend.
type Kind int

const (
	UnknownKind    Kind = 0
	CodaHaleKind   Kind = 1
	PrometheusKind Kind = 2
	AllKind        Kind = CodaHaleKind | PrometheusKind
)

// Options for initializing metrics collection.
type Options struct {

	// Format of the metrics, CodaHaleKind by default.
	Format Kind

	// Common prefix for the keys of the different collected metrics.
	// With Prometheus, it is used as the namespace.
	Prefix string

	// If set, Go runtime metrics are collected in addition to the
	// request metrics.
	EnableRuntimeMetrics bool

	// If set, the serve metrics are collected per route name.
	// Otherwise, only the method and the status are used as labels.
	EnableRouteMetrics bool

	// Buckets of the Prometheus histograms. Defaults to
	// prometheus.DefBuckets.
	HistogramBuckets []float64

	// Use an exponentially decaying sample for the CodaHale timers,
	// instead of a uniform one.
	UseExpDecaySample bool
}

// Metrics is the interface of the metrics backends.
type Metrics interface {
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)
	UpdateGauge(key string, value float64)

	// MeasureMatch measures the time of applying the root endpoint.
	MeasureMatch(start time.Time)

	// IncRejections counts the requests rejected by the root endpoint.
	IncRejections(code int)

	// MeasureServe measures the total time of serving a request.
	MeasureServe(route, method string, code int, start time.Time)

	// MeasureUpstream measures the duration of an upstream call.
	MeasureUpstream(host string, start time.Time)

	// IncUpstreamErrors counts the failed upstream calls.
	IncUpstreamErrors(host string)

	RegisterHandler(path string, mux *http.ServeMux)
	Close()
}

// ParseKind parses the name of a metrics backend.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "codahale":
		return CodaHaleKind, nil
	case "prometheus":
		return PrometheusKind, nil
	case "all":
		return AllKind, nil
	default:
		return UnknownKind, fmt.Errorf("invalid metrics flavour: %s", s)
	}
}

func (k Kind) String() string {
	switch k {
	case CodaHaleKind:
		return "codahale"
	case PrometheusKind:
		return "prometheus"
	case AllKind:
		return "all"
	default:
		return "unknown"
	}
}

// NewDefault creates the backend selected by the options.
func NewDefault(o Options) Metrics {
	switch o.Format {
	case AllKind:
		return NewAll(o)
	case PrometheusKind:
		return NewPrometheus(o)
	default:
		return NewCodaHale(o)
	}
}

var (
	// Void discards every value.
	Void = NewVoid()

	// Default is the metrics backend used when none was configured.
	Default Metrics = Void
)
