package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	KeyMatch           = "match"
	KeyRejections      = "rejections.%d"
	KeyServe           = "serve.%s.%d"
	KeyServeRoute      = "serveroute.%s.%s.%d"
	KeyUpstream        = "upstream.%s"
	KeyErrorsUpstream  = "errors.upstream.%s"
	KeyUpstreamCombine = "all.upstream"

	statsRefreshDuration = 5 * time.Second
)

// CodaHale is the CodaHale format backend, implements Metrics interface in DropWizard's CodaHale metrics format.
type CodaHale struct {
	reg           metrics.Registry
	createTimer   func() metrics.Timer
	createCounter func() metrics.Counter
	createGauge   func() metrics.GaugeFloat64
	options       Options
	handler       http.Handler
	quit          chan struct{}
}

// NewCodaHale returns a new CodaHale backend of metrics.
func NewCodaHale(o Options) *CodaHale {
	c := &CodaHale{
		reg:           metrics.NewRegistry(),
		createCounter: metrics.NewCounter,
		createGauge:   metrics.NewGaugeFloat64,
		options:       o,
		quit:          make(chan struct{}),
	}

	createSample := newUniformSample
	if o.UseExpDecaySample {
		createSample = newExpDecaySample
	}

	c.createTimer = func() metrics.Timer { return createTimer(createSample()) }

	if o.EnableRuntimeMetrics {
		metrics.RegisterRuntimeMemStats(c.reg)
		go c.captureRuntimeMemStats()
	}

	return c
}

// NewVoid returns a CodaHale backend that discards every value.
func NewVoid() *CodaHale {
	return &CodaHale{
		reg:           metrics.NewRegistry(),
		createTimer:   func() metrics.Timer { return metrics.NilTimer{} },
		createCounter: func() metrics.Counter { return metrics.NilCounter{} },
		createGauge:   func() metrics.GaugeFloat64 { return metrics.NilGaugeFloat64{} },
		quit:          make(chan struct{}),
	}
}

func (c *CodaHale) captureRuntimeMemStats() {
	t := time.NewTicker(statsRefreshDuration)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			metrics.CaptureRuntimeMemStatsOnce(c.reg)
		case <-c.quit:
			return
		}
	}
}

func (c *CodaHale) getTimer(key string) metrics.Timer {
	return c.reg.GetOrRegister(key, c.createTimer).(metrics.Timer)
}

func (c *CodaHale) getCounter(key string) metrics.Counter {
	return c.reg.GetOrRegister(key, c.createCounter).(metrics.Counter)
}

func (c *CodaHale) getGauge(key string) metrics.GaugeFloat64 {
	return c.reg.GetOrRegister(key, c.createGauge).(metrics.GaugeFloat64)
}

func (c *CodaHale) measureSince(key string, start time.Time) {
	c.getTimer(key).UpdateSince(start)
}

func (c *CodaHale) incCounter(key string, value int64) {
	c.getCounter(key).Inc(value)
}

func (c *CodaHale) MeasureSince(key string, start time.Time) {
	c.measureSince(key, start)
}

func (c *CodaHale) IncCounter(key string) {
	c.incCounter(key, 1)
}

func (c *CodaHale) IncCounterBy(key string, value int64) {
	c.incCounter(key, value)
}

func (c *CodaHale) UpdateGauge(key string, v float64) {
	c.getGauge(key).Update(v)
}

func (c *CodaHale) MeasureMatch(start time.Time) {
	c.measureSince(KeyMatch, start)
}

func (c *CodaHale) IncRejections(code int) {
	c.incCounter(fmt.Sprintf(KeyRejections, code), 1)
}

func (c *CodaHale) MeasureServe(route, method string, code int, start time.Time) {
	method = measuredMethod(method)
	c.measureSince(fmt.Sprintf(KeyServe, method, code), start)
	if c.options.EnableRouteMetrics {
		c.measureSince(fmt.Sprintf(KeyServeRoute, measuredRoute(route), method, code), start)
	}
}

func (c *CodaHale) MeasureUpstream(host string, start time.Time) {
	c.measureSince(KeyUpstreamCombine, start)
	c.measureSince(fmt.Sprintf(KeyUpstream, HostKey(host)), start)
}

func (c *CodaHale) IncUpstreamErrors(host string) {
	c.incCounter(fmt.Sprintf(KeyErrorsUpstream, HostKey(host)), 1)
}

// Close stops the collection of the runtime metrics.
func (c *CodaHale) Close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

func (c *CodaHale) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, c.getHandler(path))
}

// CreateHandler returns the handler serving the metrics as JSON. The
// part of the request path after the prefix selects a single metric or
// the metrics with a common key prefix.
func (c *CodaHale) CreateHandler(path string) http.Handler {
	return &codaHaleMetricsHandler{path: path, registry: c.reg, options: c.options}
}

func (c *CodaHale) getHandler(path string) http.Handler {
	if c.handler != nil {
		return c.handler
	}

	c.handler = c.CreateHandler(path)
	return c.handler
}

type codaHaleMetricsHandler struct {
	path     string
	registry metrics.Registry
	options  Options
}

func (c *codaHaleMetricsHandler) sendMetrics(w http.ResponseWriter, p string) {
	_, k := path.Split(p)
	m := filterMetrics(c.registry, c.options.Prefix, k)
	if len(m) == 0 {
		http.NotFound(w, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(m)
}

func (c *codaHaleMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	c.sendMetrics(w, strings.TrimPrefix(r.URL.Path, c.path))
}

func filterMetrics(reg metrics.Registry, prefix, key string) codaHaleMetrics {
	m := make(codaHaleMetrics)
	canonicalKey := strings.TrimPrefix(key, prefix)
	if mi := reg.Get(canonicalKey); mi != nil {
		m[key] = mi
		return m
	}

	reg.Each(func(name string, i interface{}) {
		if key == "" || strings.HasPrefix(name, canonicalKey) {
			m[prefix+name] = i
		}
	})

	return m
}

type codaHaleMetrics map[string]interface{}

func timerValues(t metrics.Timer) map[string]interface{} {
	s := t.Snapshot()
	ps := s.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999})
	return map[string]interface{}{
		"count":     s.Count(),
		"min":       s.Min(),
		"max":       s.Max(),
		"mean":      s.Mean(),
		"stddev":    s.StdDev(),
		"median":    ps[0],
		"75%":       ps[1],
		"95%":       ps[2],
		"99%":       ps[3],
		"99.9%":     ps[4],
		"1m.rate":   s.Rate1(),
		"5m.rate":   s.Rate5(),
		"15m.rate":  s.Rate15(),
		"mean.rate": s.RateMean(),
	}
}

// MarshalJSON groups the metrics by family: gauges, timers and counters.
func (cm codaHaleMetrics) MarshalJSON() ([]byte, error) {
	data := make(map[string]map[string]interface{})
	for name, metric := range cm {
		var (
			family string
			values map[string]interface{}
		)

		switch m := metric.(type) {
		case metrics.Gauge:
			family = "gauges"
			values = map[string]interface{}{"value": m.Value()}
		case metrics.GaugeFloat64:
			family = "gauges"
			values = map[string]interface{}{"value": m.Snapshot().Value()}
		case metrics.Timer:
			family = "timers"
			values = timerValues(m)
		case metrics.Counter:
			family = "counters"
			values = map[string]interface{}{"count": m.Snapshot().Count()}
		default:
			family = "unknown"
			values = map[string]interface{}{"error": fmt.Sprintf("unknown metrics type %T", m)}
		}

		if data[family] == nil {
			data[family] = make(map[string]interface{})
		}

		data[family][name] = values
	}

	return json.Marshal(data)
}
