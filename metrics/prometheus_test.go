package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zalando/waypoint/metrics"
)

func scrape(t *testing.T, m metrics.Metrics) string {
	t.Helper()
	mux := http.NewServeMux()
	m.RegisterHandler("/metrics", mux)

	rsp := httptest.NewRecorder()
	mux.ServeHTTP(rsp, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rsp.Code)

	b, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPrometheusMetrics(t *testing.T) {
	for _, tt := range []struct {
		name       string
		opts       metrics.Options
		addMetrics func(*metrics.Prometheus)
		expMetrics []string
	}{{
		name: "rejections are counted per status",
		addMetrics: func(pm *metrics.Prometheus) {
			pm.IncRejections(404)
			pm.IncRejections(405)
			pm.IncRejections(404)
		},
		expMetrics: []string{
			`waypoint_match_rejections_total{code="404"} 2`,
			`waypoint_match_rejections_total{code="405"} 1`,
		},
	}, {
		name: "matching time is measured",
		addMetrics: func(pm *metrics.Prometheus) {
			pm.MeasureMatch(time.Now())
			pm.MeasureMatch(time.Now())
		},
		expMetrics: []string{
			`waypoint_match_duration_seconds_count 2`,
		},
	}, {
		name: "serve is measured per method and status",
		addMetrics: func(pm *metrics.Prometheus) {
			pm.MeasureServe("todo", "GET", 200, time.Now())
			pm.MeasureServe("todo", "GET", 200, time.Now())
			pm.MeasureServe("todo", "FOO", 500, time.Now())
		},
		expMetrics: []string{
			`waypoint_serve_duration_seconds_count{code="200",method="GET"} 2`,
			`waypoint_serve_requests_total{code="200",method="GET"} 2`,
			`waypoint_serve_requests_total{code="500",method="_unknownmethod_"} 1`,
		},
	}, {
		name: "serve is measured per route when enabled",
		opts: metrics.Options{EnableRouteMetrics: true},
		addMetrics: func(pm *metrics.Prometheus) {
			pm.MeasureServe("todo", "GET", 200, time.Now())
			pm.MeasureServe("", "GET", 404, time.Now())
		},
		expMetrics: []string{
			`waypoint_serve_requests_total{code="200",method="GET",route="todo"} 1`,
			`waypoint_serve_requests_total{code="404",method="GET",route="_unnamed_"} 1`,
		},
	}, {
		name: "upstream calls are measured per host",
		addMetrics: func(pm *metrics.Prometheus) {
			pm.MeasureUpstream("users.internal", time.Now())
			pm.IncUpstreamErrors("users.internal")
			pm.IncUpstreamErrors("users.internal")
		},
		expMetrics: []string{
			`waypoint_upstream_duration_seconds_count{host="users.internal"} 1`,
			`waypoint_upstream_error_total{host="users.internal"} 2`,
		},
	}, {
		name: "custom metrics",
		addMetrics: func(pm *metrics.Prometheus) {
			pm.IncCounter("todos")
			pm.IncCounterBy("todos", 3)
			pm.UpdateGauge("queue", 7)
			pm.MeasureSince("store", time.Now())
		},
		expMetrics: []string{
			`waypoint_custom_total{key="todos"} 4`,
			`waypoint_custom_gauges{key="queue"} 7`,
			`waypoint_custom_duration_seconds_count{key="store"} 1`,
		},
	}, {
		name: "prefix is used as namespace",
		opts: metrics.Options{Prefix: "todo."},
		addMetrics: func(pm *metrics.Prometheus) {
			pm.IncRejections(404)
		},
		expMetrics: []string{
			`todo_match_rejections_total{code="404"} 1`,
		},
	}} {
		t.Run(tt.name, func(t *testing.T) {
			pm := metrics.NewPrometheus(tt.opts)
			tt.addMetrics(pm)

			got := scrape(t, pm)
			for _, exp := range tt.expMetrics {
				if !strings.Contains(got, exp) {
					t.Errorf("metric not found: %s\n%s", exp, got)
				}
			}
		})
	}
}

func TestPrometheusRuntimeMetrics(t *testing.T) {
	got := scrape(t, metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: true}))
	if !strings.Contains(got, "go_goroutines") {
		t.Error("runtime metrics not found")
	}
}

func TestAllServesBothFormats(t *testing.T) {
	a := metrics.NewAll(metrics.Options{})
	defer a.Close()

	a.IncRejections(404)
	mux := http.NewServeMux()
	a.RegisterHandler("/metrics", mux)

	rsp := httptest.NewRecorder()
	mux.ServeHTTP(rsp, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rsp.Body.String(), `waypoint_match_rejections_total{code="404"} 1`) {
		t.Errorf("prometheus format expected, got: %s", rsp.Body.String())
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept", "application/codahale+json")
	rsp = httptest.NewRecorder()
	mux.ServeHTTP(rsp, req)
	if !strings.Contains(rsp.Body.String(), `"rejections.404"`) {
		t.Errorf("codahale format expected, got: %s", rsp.Body.String())
	}
}

func TestParseKind(t *testing.T) {
	for s, k := range map[string]metrics.Kind{
		"":           metrics.CodaHaleKind,
		"codahale":   metrics.CodaHaleKind,
		"Prometheus": metrics.PrometheusKind,
		"all":        metrics.AllKind,
	} {
		got, err := metrics.ParseKind(s)
		require.NoError(t, err)
		require.Equal(t, k, got)
	}

	_, err := metrics.ParseKind("statsd")
	require.Error(t, err)
}
