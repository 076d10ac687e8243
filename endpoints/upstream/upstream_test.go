package upstream_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints/path"
	"github.com/zalando/waypoint/endpoints/upstream"
	"github.com/zalando/waypoint/endpointtest"
	"github.com/zalando/waypoint/metrics"
	"github.com/zalando/waypoint/metrics/metricstest"
	"github.com/zalando/waypoint/tuple"
)

func hostKey(s *httptest.Server) string {
	u, _ := url.Parse(s.URL)
	return metrics.HostKey(u.Host)
}

func closeConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		conn.Close()
	}
}

func response(t *testing.T, res endpointtest.Result) *upstream.Response {
	t.Helper()
	require.NoError(t, res.Err)
	rsp, err := tuple.Get1[*upstream.Response](res.Value)
	require.NoError(t, err)
	return rsp
}

func TestNew(t *testing.T) {
	for _, u := range []string{"ftp://example.org", "://", "example.org"} {
		_, err := upstream.New(upstream.Options{URL: u})
		assert.Error(t, err, u)
	}
}

func TestForward(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Path", r.URL.Path)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Test", r.Header.Get("X-Test"))
		w.Header().Set("X-Proxy-Authorization", r.Header.Get("Proxy-Authorization"))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "%s %s", r.Method, b)
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{URL: backend.URL + "/api", Client: backend.Client()})
	require.NoError(t, err)

	e := endpoint.And(path.Segment("users"), c.Forward())
	res := endpointtest.NewRequest("POST", "/users/a%20b/c?x=1").
		Header("X-Test", "foo").
		Header("Proxy-Authorization", "secret").
		Body("hello").
		Apply(e)

	rsp := response(t, res)
	assert.Equal(t, http.StatusCreated, rsp.StatusCode)
	assert.Equal(t, "/api/a b/c", rsp.Header.Get("X-Path"))
	assert.Equal(t, "x=1", rsp.Header.Get("X-Query"))
	assert.Equal(t, "foo", rsp.Header.Get("X-Test"))
	assert.Empty(t, rsp.Header.Get("X-Proxy-Authorization"))
	assert.Equal(t, "POST hello", string(rsp.Body))
}

func TestForwardConsumesPath(t *testing.T) {
	c, err := upstream.New(upstream.Options{URL: "http://example.org"})
	require.NoError(t, err)

	ctx := endpoint.NewContext(endpoint.NewInput(httptest.NewRequest("GET", "/a/b/c", nil)))
	_, rej := c.Forward().Apply(ctx)
	require.Nil(t, rej)
	assert.True(t, ctx.Cursor().Exhausted())
	assert.Equal(t, 3, ctx.Cursor().Popped())
}

func TestCall(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{URL: backend.URL + "/api/", Client: backend.Client()})
	require.NoError(t, err)

	e := endpoint.Then(endpoint.And(path.Segment("items"), path.Param[int]()), c.Call(func(t tuple.Tuple) (*http.Request, error) {
		return http.NewRequest("GET", fmt.Sprintf("/items/%d", t[0]), nil)
	}))

	rsp := response(t, endpointtest.NewRequest("GET", "/items/5").Apply(e))
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "/api/items/5", string(rsp.Body))
}

func TestRetry(t *testing.T) {
	var attempts atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			closeConnection(w)
			return
		}

		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{URL: backend.URL, Client: backend.Client(), MaxTries: 3})
	require.NoError(t, err)

	rsp := response(t, endpointtest.NewRequest("GET", "/").Apply(c.Forward()))
	assert.Equal(t, "ok", string(rsp.Body))
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
}

func TestNoRetryWithBody(t *testing.T) {
	var attempts atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		closeConnection(w)
	}))
	defer backend.Close()

	m := &metricstest.MockMetrics{}
	c, err := upstream.New(upstream.Options{URL: backend.URL, Client: backend.Client(), MaxTries: 3, Metrics: m})
	require.NoError(t, err)

	res := endpointtest.NewRequest("POST", "/").Body("data").Apply(c.Forward())
	assert.Equal(t, http.StatusBadGateway, res.Status())
	assert.Equal(t, int32(1), attempts.Load())

	n, ok := m.Counter("errors.upstream." + hostKey(backend))
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestBreaker(t *testing.T) {
	var attempts atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		closeConnection(w)
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{
		URL:     backend.URL,
		Client:  backend.Client(),
		Breaker: upstream.BreakerSettings{Failures: 2},
	})
	require.NoError(t, err)

	for _, expected := range []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusServiceUnavailable} {
		res := endpointtest.NewRequest("GET", "/").Apply(c.Forward())
		assert.Equal(t, expected, res.Status())
	}

	assert.Equal(t, int32(2), attempts.Load())
}

func TestResponseTooLarge(t *testing.T) {
	var attempts atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte("0123456789"))
	}))
	defer backend.Close()

	c, err := upstream.New(upstream.Options{URL: backend.URL, Client: backend.Client(), MaxTries: 3, MaxResponseSize: 4})
	require.NoError(t, err)

	res := endpointtest.NewRequest("GET", "/").Apply(c.Forward())
	assert.Equal(t, http.StatusBadGateway, res.Status())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestMetricsAndTracing(t *testing.T) {
	prop := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prop)

	var traceparent atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("Traceparent"))
	}))
	defer backend.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := &metricstest.MockMetrics{}
	c, err := upstream.New(upstream.Options{URL: backend.URL, Client: backend.Client(), Metrics: m, Tracer: tp.Tracer("test")})
	require.NoError(t, err)

	rsp := response(t, endpointtest.NewRequest("GET", "/").Apply(c.Forward()))
	assert.Equal(t, http.StatusOK, rsp.StatusCode)

	_, ok := m.Measure("upstream." + hostKey(backend))
	assert.True(t, ok)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "upstream", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Contains(t, traceparent.Load(), spans[0].SpanContext().TraceID().String())
}

func TestWriteResponse(t *testing.T) {
	rsp := &upstream.Response{
		StatusCode: http.StatusAccepted,
		Header:     http.Header{"Content-Type": {"text/plain"}, "Content-Length": {"100"}},
		Body:       []byte("accepted"),
	}

	w := httptest.NewRecorder()
	require.NoError(t, rsp.WriteResponse(w))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Length"))
	assert.Equal(t, "accepted", w.Body.String())
}
