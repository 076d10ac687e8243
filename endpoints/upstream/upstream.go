/*
Package upstream implements leaf endpoints that call upstream HTTP
services.

The calls are executed asynchronously: the action of the endpoint starts
the request in its own goroutine and wakes the task when the response was
received. Requests with idempotent methods and without a body are retried
with exponential backoff on transport errors. Every client can be
protected by a circuit breaker that opens after a number of consecutive
failures.

Examples:

	users, err := upstream.New(upstream.Options{
		URL:      "http://users.internal",
		MaxTries: 3,
		Breaker:  upstream.BreakerSettings{Failures: 5, Timeout: 10 * time.Second},
	})

	// forwards GET /users/... to http://users.internal/...
	endpoint.And(method.Get(), path.Segment("users"), users.Forward())

	// calls the upstream with a request built from the matched values
	endpoint.Then(path.Param[uint64](), users.Call(func(t tuple.Tuple) (*http.Request, error) {
		return http.NewRequest("GET", fmt.Sprintf("/users/%d", t[0]), nil)
	}))
*/
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/metrics"
	"github.com/zalando/waypoint/tuple"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxResponseSize = 10 << 20

	tracerName = "github.com/zalando/waypoint/endpoints/upstream"
)

var errResponseTooLarge = errors.New("upstream response too large")

// hop-by-hop headers, not forwarded
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// BreakerSettings configures the circuit breaker of a client. When
// Failures is 0, no breaker is used.
type BreakerSettings struct {

	// Number of consecutive failures that open the breaker.
	Failures int

	// Time after which an open breaker lets requests through again.
	Timeout time.Duration

	// Number of requests allowed in half-open state.
	HalfOpenRequests int
}

// Options of an upstream client.
type Options struct {

	// Base URL of the upstream. The paths of the forwarded or built
	// requests are appended to its path.
	URL string

	// HTTP client used for the calls. When nil, a client with Timeout is
	// created.
	Client *http.Client

	// Timeout of a single call when Client is not set.
	Timeout time.Duration

	// Maximum number of attempts for retryable requests. Defaults to 1.
	MaxTries uint

	// Limit of the response body size.
	MaxResponseSize int64

	Breaker BreakerSettings

	// Metrics backend measuring the calls. When nil, metrics.Default is
	// used at the time of the call.
	Metrics metrics.Metrics

	// Tracer of the client spans. Defaults to the tracer of the global
	// OpenTelemetry provider.
	Tracer trace.Tracer
}

// Response of an upstream call, with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client calls a single upstream.
type Client struct {
	base     *url.URL
	client   *http.Client
	maxTries uint
	maxSize  int64
	breaker  *gobreaker.TwoStepCircuitBreaker
	metrics  metrics.Metrics
	tracer   trace.Tracer
}

// New creates an upstream client.
func New(o Options) (*Client, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream URL scheme: %q", o.URL)
	}

	c := &Client{
		base:     u,
		client:   o.Client,
		maxTries: o.MaxTries,
		maxSize:  o.MaxResponseSize,
		metrics:  o.Metrics,
		tracer:   o.Tracer,
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	if c.client == nil {
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}

		c.client = &http.Client{Timeout: timeout}
	}

	if c.maxTries == 0 {
		c.maxTries = 1
	}

	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxResponseSize
	}

	if o.Breaker.Failures > 0 {
		failures := uint32(o.Breaker.Failures)
		c.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        u.Host,
			MaxRequests: uint32(o.Breaker.HalfOpenRequests),
			Timeout:     o.Breaker.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Infof("upstream circuit breaker %s changed from %v to %v", name, from, to)
			},
		})
	}

	return c, nil
}

// WriteResponse writes the upstream response to w.
func (r *Response) WriteResponse(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range r.Header {
		h[k] = append([]string(nil), v...)
	}

	h.Del("Content-Length")
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}

func (c *Client) measure() metrics.Metrics {
	if c.metrics != nil {
		return c.metrics
	}

	return metrics.Default
}

func (c *Client) resolve(p, rawQuery string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(p, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	return &u
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func retryable(req *http.Request) bool {
	return idempotent(req.Method) && (req.Body == nil || req.Body == http.NoBody)
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer rsp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(rsp.Body, c.maxSize+1))
	if err != nil {
		return nil, err
	}

	if int64(len(b)) > c.maxSize {
		return nil, backoff.Permanent(errResponseTooLarge)
	}

	return &Response{StatusCode: rsp.StatusCode, Header: rsp.Header, Body: b}, nil
}

// Do executes the request. A request with a relative URL is resolved
// against the base URL of the client. Failures are reported as 502 Bad
// Gateway, an open breaker as 503 Service Unavailable.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	if !req.URL.IsAbs() {
		req.URL = c.resolve(req.URL.Path, req.URL.RawQuery)
		req.Host = ""
	}

	ctx, span := c.tracer.Start(ctx, "upstream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
		),
	)
	defer span.End()

	if req.Header == nil {
		req.Header = make(http.Header)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	rsp, err := c.do(ctx, req)
	if err != nil {
		c.measure().IncUpstreamErrors(c.base.Host)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", rsp.StatusCode))
	return rsp, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Response, error) {
	var done func(bool)
	if c.breaker != nil {
		var err error
		done, err = c.breaker.Allow()
		if err != nil {
			return nil, endpoint.NewError(http.StatusServiceUnavailable, fmt.Errorf("upstream %s: %w", c.base.Host, err))
		}
	}

	tries := c.maxTries
	if !retryable(req) {
		tries = 1
	}

	start := time.Now()
	rsp, err := backoff.Retry(ctx, func() (*Response, error) {
		return c.roundTrip(req.Clone(ctx))
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(tries))

	c.measure().MeasureUpstream(c.base.Host, start)
	if done != nil {
		done(err == nil && rsp.StatusCode < http.StatusInternalServerError)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, endpoint.NewError(http.StatusBadGateway, fmt.Errorf("upstream %s: %w", c.base.Host, err))
	}

	return rsp, nil
}

// Forward matches every request and consumes the rest of the path. Its
// action forwards the request to the upstream, with the remaining path
// appended to the base URL, and produces the *Response.
func (c *Client) Forward() endpoint.Endpoint {
	return endpoint.Func(func(ec *endpoint.Context) (endpoint.Action, *endpoint.Rejection) {
		cur := ec.Cursor()
		rest := cur.Remaining()
		cur.Skip()
		ec.SetCursor(cur)

		return endpoint.Async(func(ctx context.Context, in *endpoint.Input) (tuple.Tuple, error) {
			body, err := in.TakeBody()
			if err != nil {
				return nil, endpoint.NewError(http.StatusInternalServerError, err)
			}

			u := c.resolve("", in.URL().RawQuery)
			u.RawPath = strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + rest
			if p, err := url.PathUnescape(u.RawPath); err == nil {
				u.Path = p
			}

			req, err := http.NewRequestWithContext(ctx, in.Method(), u.String(), body)
			if err != nil {
				return nil, endpoint.NewError(http.StatusInternalServerError, err)
			}

			req.Header = in.Header().Clone()
			for _, h := range hopHeaders {
				req.Header.Del(h)
			}

			req.ContentLength = in.Request().ContentLength
			rsp, err := c.Do(ctx, req)
			if err != nil {
				return nil, err
			}

			return tuple.Of(rsp), nil
		}), nil
	})
}

// Call returns a continuation for endpoint.Then that calls the upstream
// with the request built from the matched values, and produces the
// *Response.
func (c *Client) Call(build func(tuple.Tuple) (*http.Request, error)) func(tuple.Tuple) endpoint.Action {
	return func(t tuple.Tuple) endpoint.Action {
		return endpoint.Async(func(ctx context.Context, _ *endpoint.Input) (tuple.Tuple, error) {
			req, err := build(t)
			if err != nil {
				return nil, endpoint.NewError(http.StatusInternalServerError, err)
			}

			rsp, err := c.Do(ctx, req.WithContext(ctx))
			if err != nil {
				return nil, err
			}

			return tuple.Of(rsp), nil
		})
	}
}
