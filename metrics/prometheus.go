package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace         = "waypoint"
	promMatchSubsystem    = "match"
	promServeSubsystem    = "serve"
	promUpstreamSubsystem = "upstream"
	promCustomSubsystem   = "custom"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	matchM           prometheus.Histogram
	rejectionsM      *prometheus.CounterVec
	serveM           *prometheus.HistogramVec
	serveCounterM    *prometheus.CounterVec
	upstreamM        *prometheus.HistogramVec
	upstreamErrorsM  *prometheus.CounterVec
	customHistogramM *prometheus.HistogramVec
	customCounterM   *prometheus.CounterVec
	customGaugeM     *prometheus.GaugeVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	serveLabels := []string{"method", "code"}
	if opts.EnableRouteMetrics {
		serveLabels = []string{"route", "method", "code"}
	}

	p := &Prometheus{
		matchM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promMatchSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of matching a request against the endpoint tree.",
			Buckets:   buckets,
		}),
		rejectionsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promMatchSubsystem,
			Name:      "rejections_total",
			Help:      "The total of requests rejected by the endpoint tree.",
		}, []string{"code"}),
		serveM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of serving a request.",
			Buckets:   buckets,
		}, serveLabels),
		serveCounterM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "requests_total",
			Help:      "Total number of served requests.",
		}, serveLabels),
		upstreamM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promUpstreamSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of an upstream call.",
			Buckets:   buckets,
		}, []string{"host"}),
		upstreamErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promUpstreamSubsystem,
			Name:      "error_total",
			Help:      "Total number of failed upstream calls.",
		}, []string{"host"}),
		customHistogramM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promCustomSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of custom metrics.",
			Buckets:   buckets,
		}, []string{"key"}),
		customCounterM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promCustomSubsystem,
			Name:      "total",
			Help:      "Total number of custom metrics.",
		}, []string{"key"}),
		customGaugeM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: promCustomSubsystem,
			Name:      "gauges",
			Help:      "Gauges number of custom metrics.",
		}, []string{"key"}),
		opts:     opts,
		registry: prometheus.NewRegistry(),
	}

	p.registerMetrics()
	return p
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(
		p.matchM,
		p.rejectionsM,
		p.serveM,
		p.serveCounterM,
		p.upstreamM,
		p.upstreamErrorsM,
		p.customHistogramM,
		p.customCounterM,
		p.customGaugeM,
	)

	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

// CreateHandler returns the handler serving the metrics in the
// Prometheus text format.
func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, p.getHandler())
}

// MeasureSince satisfies Metrics interface.
func (p *Prometheus) MeasureSince(key string, start time.Time) {
	p.customHistogramM.WithLabelValues(key).Observe(sinceS(start))
}

// IncCounter satisfies Metrics interface.
func (p *Prometheus) IncCounter(key string) {
	p.customCounterM.WithLabelValues(key).Inc()
}

// IncCounterBy satisfies Metrics interface.
func (p *Prometheus) IncCounterBy(key string, value int64) {
	p.customCounterM.WithLabelValues(key).Add(float64(value))
}

// UpdateGauge satisfies Metrics interface.
func (p *Prometheus) UpdateGauge(key string, v float64) {
	p.customGaugeM.WithLabelValues(key).Set(v)
}

// MeasureMatch satisfies Metrics interface.
func (p *Prometheus) MeasureMatch(start time.Time) {
	p.matchM.Observe(sinceS(start))
}

// IncRejections satisfies Metrics interface.
func (p *Prometheus) IncRejections(code int) {
	p.rejectionsM.WithLabelValues(strconv.Itoa(code)).Inc()
}

// MeasureServe satisfies Metrics interface.
func (p *Prometheus) MeasureServe(route, method string, code int, start time.Time) {
	labels := []string{measuredMethod(method), strconv.Itoa(code)}
	if p.opts.EnableRouteMetrics {
		labels = append([]string{measuredRoute(route)}, labels...)
	}

	p.serveM.WithLabelValues(labels...).Observe(sinceS(start))
	p.serveCounterM.WithLabelValues(labels...).Inc()
}

// MeasureUpstream satisfies Metrics interface.
func (p *Prometheus) MeasureUpstream(host string, start time.Time) {
	p.upstreamM.WithLabelValues(host).Observe(sinceS(start))
}

// IncUpstreamErrors satisfies Metrics interface.
func (p *Prometheus) IncUpstreamErrors(host string) {
	p.upstreamErrorsM.WithLabelValues(host).Inc()
}

// Close satisfies Metrics interface.
func (p *Prometheus) Close() {}
