package metrics

import (
	"net/http"
	"time"
)

// CodaHaleContentType selects the CodaHale JSON format on the metrics
// endpoint of All. Any other Accept header gets the Prometheus format.
const CodaHaleContentType = "application/codahale+json"

// All collects the metrics with both backends.
type All struct {
	prometheus *Prometheus
	codaHale   *CodaHale
}

func NewAll(o Options) *All {
	return &All{prometheus: NewPrometheus(o), codaHale: NewCodaHale(o)}
}

func (a *All) each(f func(Metrics)) {
	f(a.prometheus)
	f(a.codaHale)
}

func (a *All) MeasureSince(key string, start time.Time) {
	a.each(func(m Metrics) { m.MeasureSince(key, start) })
}

func (a *All) IncCounter(key string) { a.IncCounterBy(key, 1) }

func (a *All) IncCounterBy(key string, value int64) {
	a.each(func(m Metrics) { m.IncCounterBy(key, value) })
}

func (a *All) UpdateGauge(key string, v float64) {
	a.each(func(m Metrics) { m.UpdateGauge(key, v) })
}

func (a *All) MeasureMatch(start time.Time) {
	a.each(func(m Metrics) { m.MeasureMatch(start) })
}

func (a *All) IncRejections(code int) {
	a.each(func(m Metrics) { m.IncRejections(code) })
}

func (a *All) MeasureServe(route, method string, code int, start time.Time) {
	a.each(func(m Metrics) { m.MeasureServe(route, method, code, start) })
}

func (a *All) MeasureUpstream(host string, start time.Time) {
	a.each(func(m Metrics) { m.MeasureUpstream(host, start) })
}

func (a *All) IncUpstreamErrors(host string) {
	a.each(func(m Metrics) { m.IncUpstreamErrors(host) })
}

func (a *All) Close() {
	a.each(Metrics.Close)
}

func (a *All) RegisterHandler(path string, mux *http.ServeMux) {
	prom, coda := a.prometheus.getHandler(), a.codaHale.getHandler(path)
	mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == CodaHaleContentType {
			coda.ServeHTTP(w, r)
			return
		}

		prom.ServeHTTP(w, r)
	}))
}
