/*
Package server adapts a root endpoint to net/http, and runs the HTTP
listeners.

For every request, the handler takes the request snapshot, matches it
against the root endpoint, runs the selected action and renders the
result with the configured responder. A rejection of the root endpoint
is rendered with its status, 404, 405, 400 or any custom one.

The handler assigns a request ID to every request, taken from the
X-Request-Id header when present, starts a server span with the
OpenTelemetry tracer, measures the request with the configured metrics
backend and writes an entry to the access log.

Run starts the main listener and, optionally, the support listener that
serves the metrics and the health check. It stops both when the context
is done, waiting at most ShutdownTimeout for the active requests.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dimfeld/httppath"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/logging"
	"github.com/zalando/waypoint/metrics"
	"github.com/zalando/waypoint/responder"
	"github.com/zalando/waypoint/tuple"
)

const (
	// RequestIDHeader carries the ID of the request, both in the request
	// and in the response.
	RequestIDHeader = "X-Request-Id"

	// KeyInFlight is the gauge of the requests being served.
	KeyInFlight = "inflight"

	tracerName = "github.com/zalando/waypoint/server"

	defaultShutdownTimeout = 30 * time.Second
)

// Options of the handler and the listeners.
type Options struct {

	// Network address of the main listener, e.g. ":9090".
	Address string

	// Network address of the support listener serving /metrics and
	// /healthz. When empty, no support listener is started.
	SupportListener string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Time to wait, after the context of Run was done, before the
	// listeners are shut down. The health check reports unavailable during
	// this period, so that load balancers stop sending new requests.
	ShutdownGracePeriod time.Duration

	// Maximum time to wait for the active requests during the shutdown.
	ShutdownTimeout time.Duration

	// When set, the execution of every request is cancelled after this
	// duration, and the request fails with 504 Gateway Timeout.
	RequestTimeout time.Duration

	// When set, the request path is cleaned before matching, e.g.
	// /todos/../todos//7 is matched as /todos/7.
	CleanPath bool

	// Responder rendering the results. Defaults to responder.New with
	// the default options.
	Responder responder.Responder

	// Metrics backend. Defaults to metrics.Default.
	Metrics metrics.Metrics

	// Tracer used for the server spans. Defaults to the tracer of the
	// global OpenTelemetry provider.
	Tracer trace.Tracer

	// When set, the access log handler is not used.
	AccessLogDisabled bool
}

type handler struct {
	root      endpoint.Endpoint
	options   Options
	responder responder.Responder
	metrics   metrics.Metrics
	tracer    trace.Tracer
	inflight  atomic.Int64
}

// NewHandler creates the http.Handler serving the root endpoint.
func NewHandler(root endpoint.Endpoint, o Options) http.Handler {
	h := &handler{root: root, options: o, responder: o.Responder, metrics: o.Metrics, tracer: o.Tracer}
	if h.responder == nil {
		h.responder = responder.New(responder.Options{})
	}

	if h.metrics == nil {
		h.metrics = metrics.Default
	}

	if h.tracer == nil {
		h.tracer = otel.Tracer(tracerName)
	}

	if o.AccessLogDisabled {
		return h
	}

	return logging.NewHandler(h)
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}

	return uuid.NewString()
}

func cleanPath(u *url.URL) *url.URL {
	p := httppath.Clean(u.EscapedPath())
	up, err := url.PathUnescape(p)
	if err != nil {
		return u
	}

	cu := *u
	cu.Path = up
	cu.RawPath = p
	return &cu
}

func (h *handler) updateInFlight(d int64) {
	h.metrics.UpdateGauge(KeyInFlight, float64(h.inflight.Add(d)))
}

// execute matches and runs the request. When the root endpoint rejects
// the request, the rejection is returned as the error.
func (h *handler) execute(ctx context.Context, in *endpoint.Input, span trace.Span) (tuple.Tuple, error) {
	matchStart := time.Now()
	a, rej := h.root.Apply(endpoint.NewContext(in))
	h.metrics.MeasureMatch(matchStart)
	if rej != nil {
		h.metrics.IncRejections(rej.Status)
		span.SetAttributes(attribute.Int("waypoint.rejection.status", rej.Status))
		return nil, rej
	}

	return endpoint.NewDriver(a).Run(ctx, in)
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.updateInFlight(1)
	defer h.updateInFlight(-1)

	id := requestID(r)
	w.Header().Set(RequestIDHeader, id)

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("waypoint.request.id", id),
		),
	)
	defer span.End()

	if h.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.options.RequestTimeout)
		defer cancel()
	}

	r = r.WithContext(ctx)
	if h.options.CleanPath {
		r.URL = cleanPath(r.URL)
	}

	in := endpoint.NewInput(r)
	t, err := h.execute(ctx, in, span)

	lw := logging.NewLoggingWriter(w)
	h.responder.Respond(lw, r, t, err)

	code := lw.StatusCode()
	route := in.Route()
	span.SetAttributes(attribute.Int("http.response.status_code", code))
	if route != "" {
		span.SetAttributes(attribute.String("http.route", route))
	}

	if code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(code))
		if err != nil {
			span.RecordError(err)
		}
	}

	h.metrics.MeasureServe(route, r.Method, code, start)

	if e := logging.AccessEntryFrom(r.Context()); e != nil {
		e.Route = route
		e.RequestID = id
	}
}

type healthHandler struct {
	shuttingDown *atomic.Bool
}

func (hh healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if hh.shuttingDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// NewSupportHandler creates the handler of the support listener, serving
// the metrics on /metrics and the health check on /healthz.
func NewSupportHandler(m metrics.Metrics, shuttingDown *atomic.Bool) http.Handler {
	if m == nil {
		m = metrics.Default
	}

	if shuttingDown == nil {
		shuttingDown = &atomic.Bool{}
	}

	mux := http.NewServeMux()
	m.RegisterHandler("/metrics", mux)
	m.RegisterHandler("/metrics/", mux)
	mux.Handle("/healthz", healthHandler{shuttingDown: shuttingDown})
	return mux
}

func (o Options) newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       o.ReadTimeout,
		ReadHeaderTimeout: o.ReadHeaderTimeout,
		WriteTimeout:      o.WriteTimeout,
		IdleTimeout:       o.IdleTimeout,
		MaxHeaderBytes:    o.MaxHeaderBytes,
	}
}

func serve(s *http.Server, l net.Listener, name string) error {
	log.Infof("%s listener on %v", name, l.Addr())
	if err := s.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", name, err)
	}

	return nil
}

// Run serves the root endpoint on the configured address until ctx is
// done, then shuts the listeners down gracefully.
func Run(ctx context.Context, root endpoint.Endpoint, o Options) error {
	l, err := net.Listen("tcp", o.Address)
	if err != nil {
		return err
	}

	var sl net.Listener
	if o.SupportListener != "" {
		sl, err = net.Listen("tcp", o.SupportListener)
		if err != nil {
			l.Close()
			return err
		}
	}

	return RunListeners(ctx, root, o, l, sl)
}

// RunListeners is like Run, but it uses the provided listeners. The
// support listener can be nil.
func RunListeners(ctx context.Context, root endpoint.Endpoint, o Options, l, supportListener net.Listener) error {
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	timeout := o.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	var shuttingDown atomic.Bool
	servers := []*http.Server{o.newServer(o.Address, NewHandler(root, o))}
	listeners := []net.Listener{l}
	names := []string{"main"}
	if supportListener != nil {
		servers = append(servers, o.newServer(o.SupportListener, NewSupportHandler(o.Metrics, &shuttingDown)))
		listeners = append(listeners, supportListener)
		names = append(names, "support")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		s, l, name := servers[i], listeners[i], names[i]
		g.Go(func() error { return serve(s, l, name) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shuttingDown.Store(true)

		if ctx.Err() != nil && o.ShutdownGracePeriod > 0 {
			log.Infof("shutting down in %v", o.ShutdownGracePeriod)
			time.Sleep(o.ShutdownGracePeriod)
		}

		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var err error
		for _, s := range servers {
			err = errors.Join(err, s.Shutdown(sctx))
		}

		if err != nil {
			return fmt.Errorf("failed to shut down the listeners: %w", err)
		}

		log.Info("listeners stopped")
		return nil
	})

	return g.Wait()
}
